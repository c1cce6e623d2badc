package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"livesub/internal/config"
	"livesub/internal/deps"
	"livesub/internal/logging"
	"livesub/internal/media/ffprobe"
	"livesub/internal/pipeline"
	"livesub/internal/playback"
	"livesub/internal/subtitles"
)

// subtitleConsole prints every subtitle change with the playback position
// it appeared at.
type subtitleConsole struct {
	mu    sync.Mutex
	out   io.Writer
	clock playback.Clock
}

func (c *subtitleConsole) Show(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := subtitles.FormatTimestamp(c.clock.Position())
	if text == "" {
		fmt.Fprintf(c.out, "[%s]\n", stamp)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s\n", stamp, strings.ReplaceAll(text, "\n", " / "))
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		start     time.Duration
		seekAt    time.Duration
		seekTo    time.Duration
		translate bool
		keep      bool
	)
	cmd := &cobra.Command{
		Use:   "play <media>",
		Short: "Simulate playback and print subtitles in sync with the clock",
		Long: "Play a media file on a simulated clock while the pipeline produces cues.\n" +
			"Playback holds while subtitles are not yet available and resumes when\n" +
			"they catch up, the way a player would.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve media path: %w", err)
			}
			if cmd.Flags().Changed("translate") {
				copied := *cfg
				copied.Translation.Enabled = translate
				cfg = &copied
			}

			runCtx := cmd.Context()
			probeCtx, cancel := context.WithTimeout(runCtx, 30*time.Second)
			info, err := ffprobe.Probe(probeCtx, deps.ResolveFFprobe(cfg.Audio.FFprobeBinary, cfg.Audio.FFmpegBinary), path)
			cancel()
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}
			if info.Duration <= 0 {
				return fmt.Errorf("probe %s: unknown duration", path)
			}
			if start >= info.Duration {
				return fmt.Errorf("start %s is past the end of the media (%s)", start, info.Duration)
			}
			plan := playPlan{start: start, tick: cfg.TickInterval()}
			if cmd.Flags().Changed("seek-at") || cmd.Flags().Changed("seek-to") {
				if seekAt <= start || seekAt >= info.Duration {
					return fmt.Errorf("--seek-at %s must fall between the start (%s) and the end of the media (%s)", seekAt, start, info.Duration)
				}
				if seekTo < 0 || seekTo >= info.Duration {
					return fmt.Errorf("--seek-to %s is outside the media (%s)", seekTo, info.Duration)
				}
				plan.seekAt, plan.seekTo, plan.seek = seekAt, seekTo, true
			}

			workDir := filepath.Join(cfg.Paths.WorkDir, "play-"+uuid.NewString())
			if err := os.MkdirAll(workDir, 0o755); err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}
			if !keep {
				defer os.RemoveAll(workDir)
			}

			in := pipeline.ResolveInput(runCtx, cfg, path, workDir, logger)
			p, err := pipeline.FromConfig(cfg, in, nil, logger)
			if err != nil {
				return err
			}

			transcript := subtitles.NewTranscriptFile(filepath.Join(workDir, cfg.Subtitles.TranscriptFile), cfg.LockTimeout())
			clock := playback.NewSimulatedClock(info.Duration, time.Now)

			logger.Info("playback started",
				logging.String("input", path),
				logging.Duration("duration", info.Duration),
				logging.Duration("start", start),
				logging.String("work_dir", workDir),
			)
			cues, err := runPlayback(runCtx, cfg, p, clock, transcript, cmd.OutOrStdout(), plan, logger)
			if err != nil {
				return err
			}
			logger.Info("playback finished", logging.Int("cues", cues))
			return nil
		},
	}
	cmd.Flags().DurationVar(&start, "start", 0, "Start playback at this offset")
	cmd.Flags().DurationVar(&seekAt, "seek-at", 0, "Seek once playback reaches this position")
	cmd.Flags().DurationVar(&seekTo, "seek-to", 0, "Position to seek to when --seek-at is reached")
	cmd.Flags().BoolVar(&translate, "translate", false, "Translate cues (defaults to translation.enabled)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the work directory and transcript after playback")
	return cmd
}

type playPlan struct {
	start  time.Duration
	tick   time.Duration
	seek   bool
	seekAt time.Duration
	seekTo time.Duration
}

// runPlayback drives a subtitle session against clock until playback
// finishes. A planned seek restarts generation at seekTo once the clock
// reaches seekAt. It returns the number of cues held at the end.
func runPlayback(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, clock playback.Clock, transcript *subtitles.TranscriptFile, out io.Writer, plan playPlan, logger *slog.Logger) (int, error) {
	track := subtitles.NewTrack()
	session := pipeline.NewSession(ctx, p, track, logger, pipeline.WithTranscript(transcript))
	defer session.Stop()

	console := &subtitleConsole{out: out, clock: clock}
	syncer := playback.NewSynchronizer(clock, track, console, playback.Options{
		PauseGrace:      time.Duration(cfg.Subtitles.PauseGraceMillis) * time.Millisecond,
		RefreshEvery:    cfg.Subtitles.RefreshTicks,
		Transcript:      transcript,
		BufferingChecks: cfg.Subtitles.BufferingChecks,
		OnBuffering: func(buffering bool) {
			logger.Info("buffering changed", logging.Bool("buffering", buffering))
		},
		OnSeek: session.Seek,
	}, logger)

	session.Start(plan.start)
	clock.Seek(plan.start)
	clock.Play()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if plan.seek {
		go watchSeek(runCtx, clock, syncer, plan)
	}

	if err := syncer.Run(runCtx, plan.tick); err != nil {
		return track.Len(), err
	}
	if err := session.Err(); err != nil {
		return track.Len(), fmt.Errorf("subtitle generation failed: %w", err)
	}
	return track.Len(), nil
}

func watchSeek(ctx context.Context, clock playback.Clock, syncer *playback.Synchronizer, plan playPlan) {
	interval := plan.tick
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if clock.Position() >= plan.seekAt {
				syncer.RequestSeek(plan.seekTo)
				return
			}
		}
	}
}
