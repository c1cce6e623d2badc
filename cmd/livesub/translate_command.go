package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"livesub/internal/api"
	"livesub/internal/client"
	"livesub/internal/config"
	"livesub/internal/logging"
	"livesub/internal/pipeline"
	"livesub/internal/services"
	"livesub/internal/subtitles"
)

type translateOptions struct {
	start     time.Duration
	translate bool
	output    string
	remote    bool
}

// cueSink receives cues as they are produced and renders them either as SRT
// blocks or as the daemon's NDJSON stream lines.
type cueSink struct {
	srt   io.Writer
	json  *jsonLineWriter
	count int
}

func newCueSink(w io.Writer, jsonMode bool) *cueSink {
	if jsonMode {
		return &cueSink{json: newJSONLineWriter(w)}
	}
	return &cueSink{srt: w}
}

func (s *cueSink) cue(c subtitles.Cue) error {
	s.count++
	if s.json != nil {
		return s.json.Write(api.FromCue(c))
	}
	c.Index = s.count
	_, err := io.WriteString(s.srt, subtitles.FormatCue(c))
	return err
}

func (s *cueSink) status(payload api.StatusPayload) error {
	if s.json != nil {
		return s.json.Write(payload)
	}
	return nil
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var opts translateOptions
	cmd := &cobra.Command{
		Use:   "translate <media>",
		Short: "Transcribe (and optionally translate) a media file into subtitles",
		Long: "Run the subtitle pipeline over a media file and print cues as they are produced.\n" +
			"Cues are written as SRT, or as NDJSON stream lines with --json. With --remote the\n" +
			"file is uploaded to the running daemon instead of processed locally.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve media path: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("media file: %w", err)
			}
			if !cmd.Flags().Changed("translate") {
				opts.translate = cfg.Translation.Enabled
			}

			out := cmd.OutOrStdout()
			if opts.output != "" {
				file, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				out = file
			}
			sink := newCueSink(out, ctx.jsonMode())

			if opts.remote {
				return translateRemote(cmd.Context(), ctx, path, opts, sink)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			return translateLocal(cmd.Context(), cfg, path, opts, sink, logger)
		},
	}
	cmd.Flags().DurationVar(&opts.start, "start", 0, "Playback offset to start from (e.g. 1m30s)")
	cmd.Flags().BoolVar(&opts.translate, "translate", false, "Translate cues (defaults to translation.enabled)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write cues to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Upload to the running daemon")
	return cmd
}

func translateLocal(ctx context.Context, base *config.Config, path string, opts translateOptions, sink *cueSink, logger *slog.Logger) error {
	cfg := *base
	cfg.Translation.Enabled = opts.translate

	workDir := filepath.Join(cfg.Paths.WorkDir, "local-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	in := pipeline.ResolveInput(ctx, &cfg, path, workDir, logger)
	p, err := pipeline.FromConfig(&cfg, in, nil, logger)
	if err != nil {
		return err
	}
	logger.Info("translation started",
		logging.String("input", path),
		logging.String("transcriber", p.TranscriberName()),
		logging.String("translator", p.TranslatorName()),
		logging.Duration("start", opts.start),
	)

	for ev := range p.Run(ctx, opts.start) {
		switch ev.Kind {
		case pipeline.EventCue:
			if err := sink.cue(ev.Cue); err != nil {
				return fmt.Errorf("write cue: %w", err)
			}
		default:
			payload, _ := api.FromEvent(ev).(api.StatusPayload)
			if err := sink.status(payload); err != nil {
				return fmt.Errorf("write status: %w", err)
			}
			switch ev.Kind {
			case pipeline.EventError:
				return ev.Err
			case pipeline.EventCancelled:
				return context.Canceled
			}
			logger.Info("translation finished", logging.Int("cues", sink.count))
			return nil
		}
	}
	return ctx.Err()
}

func translateRemote(ctx context.Context, cmdCtx *commandContext, path string, opts translateOptions, sink *cueSink) error {
	cl, err := cmdCtx.daemonClient(ctx, true)
	if err != nil {
		return err
	}
	_, err = cl.Transcribe(ctx, client.TranscribeRequest{
		Path:      path,
		Translate: opts.translate,
		StartFrom: opts.start,
		OnTask: func(id string) {
			fmt.Fprintf(os.Stderr, "task %s\n", id)
		},
		OnCue: sink.cue,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) || client.IsAPIUnavailable(err) {
			return err
		}
		payload := api.ErrorStatus(err)
		if errors.Is(err, services.ErrCancelled) {
			payload = api.StatusPayload{Status: api.StreamCancelled, Message: err.Error()}
		}
		if werr := sink.status(payload); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}
	return sink.status(api.StatusPayload{Status: api.StreamCompleted})
}
