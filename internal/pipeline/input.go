package pipeline

import (
	"context"
	"log/slog"
	"time"

	"livesub/internal/config"
	"livesub/internal/deps"
	"livesub/internal/logging"
	"livesub/internal/media/ffprobe"
)

const probeTimeout = 30 * time.Second

// Input identifies the media a pipeline decodes.
type Input struct {
	Path        string
	AudioStream int // ordinal among audio streams; negative lets ffmpeg choose
	WorkDir     string
}

// ResolveInput probes path and picks the dialogue track for the configured
// transcription language. Probe failures are logged and fall back to
// ffmpeg's default stream.
func ResolveInput(ctx context.Context, cfg *config.Config, path, workDir string, logger *slog.Logger) Input {
	in := Input{Path: path, AudioStream: -1, WorkDir: workDir}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	binary := deps.ResolveFFprobe(cfg.Audio.FFprobeBinary, cfg.Audio.FFmpegBinary)
	result, err := ffprobe.Inspect(probeCtx, binary, path)
	if err != nil {
		logging.WarnWithContext(logger, "audio track probe failed", "probe_failed",
			logging.String("input", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "using ffmpeg default audio stream"),
			logging.String(logging.FieldErrorHint, "check ffprobe_binary"),
		)
		return in
	}
	if len(result.AudioStreams()) < 2 {
		return in
	}
	sel := ffprobe.SelectSpeech(result.Streams, cfg.Transcription.Language)
	if sel.Ordinal >= 0 {
		in.AudioStream = sel.Ordinal
		if logger != nil {
			logger.Info("selected dialogue track",
				logging.Int("audio_stream", sel.Ordinal),
				logging.String("track", sel.Label()),
			)
		}
	}
	return in
}
