package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livesub/internal/audio"
	"livesub/internal/config"
	"livesub/internal/services"
	"livesub/internal/services/retry"
	"livesub/internal/services/whisper"
)

type sidecar interface {
	Transcribe(ctx context.Context, wav []byte, filename string) (whisper.Result, error)
}

// HTTPBackend sends each segment to the faster-whisper sidecar.
type HTTPBackend struct {
	client sidecar
}

// NewHTTPBackend wraps a sidecar client.
func NewHTTPBackend(client sidecar) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func (b *HTTPBackend) Name() string { return config.TranscriptionWhisperHTTP }

func (b *HTTPBackend) Transcribe(ctx context.Context, seg audio.Segment) ([]Span, error) {
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, seg.Samples, seg.SampleRate); err != nil {
		return nil, err
	}
	result, err := b.client.Transcribe(ctx, buf.Bytes(), fmt.Sprintf("segment-%05d.wav", seg.Index))
	if err != nil {
		return nil, err
	}
	return toSpans(result), nil
}

type cliRunner interface {
	Transcribe(ctx context.Context, wavPath string) (whisper.Result, error)
}

// CommandBackend writes each segment to disk and runs whisper.cpp on it.
type CommandBackend struct {
	cli     cliRunner
	workDir string
}

// NewCommandBackend wraps a CLI runner; segment files live under workDir.
func NewCommandBackend(cli cliRunner, workDir string) *CommandBackend {
	return &CommandBackend{cli: cli, workDir: workDir}
}

func (b *CommandBackend) Name() string { return config.TranscriptionCommand }

func (b *CommandBackend) Transcribe(ctx context.Context, seg audio.Segment) ([]Span, error) {
	dir := b.workDir
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure segment dir: %w", err)
	}
	wavPath := filepath.Join(dir, fmt.Sprintf("segment-%05d.wav", seg.Index))
	file, err := os.Create(wavPath)
	if err != nil {
		return nil, fmt.Errorf("create segment wav: %w", err)
	}
	if err := audio.EncodeWAV(file, seg.Samples, seg.SampleRate); err != nil {
		_ = file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close segment wav: %w", err)
	}
	defer func() {
		_ = os.Remove(wavPath)
		_ = os.Remove(strings.TrimSuffix(wavPath, ".wav") + ".json")
	}()

	result, err := b.cli.Transcribe(ctx, wavPath)
	if err != nil {
		return nil, err
	}
	return toSpans(result), nil
}

func toSpans(result whisper.Result) []Span {
	spans := make([]Span, 0, len(result.Segments))
	for _, seg := range result.Segments {
		spans = append(spans, Span{
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}
	return spans
}

// New builds the backend selected by cfg. workDir receives temporary segment
// files for the command backend.
func New(cfg *config.Config, workDir string) (Backend, error) {
	tc := cfg.Transcription
	switch tc.Backend {
	case config.TranscriptionWhisperHTTP:
		client := whisper.NewClient(whisper.ClientConfig{
			BaseURL:        tc.URL,
			Model:          tc.Model,
			Language:       tc.Language,
			TimeoutSeconds: tc.TimeoutSeconds,
		}, whisper.WithRetryPolicy(retryPolicy(tc.RetryAttempts)))
		return NewHTTPBackend(client), nil
	case config.TranscriptionCommand:
		cli := whisper.NewCLI(whisper.CLIConfig{
			Binary:   tc.Binary,
			Model:    tc.Model,
			Language: tc.Language,
			Threads:  tc.Threads,
		})
		return NewCommandBackend(cli, workDir), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "select backend",
			fmt.Sprintf("unknown transcription backend %q", tc.Backend), nil)
	}
}

func retryPolicy(attempts int) retry.Policy {
	if attempts <= 0 {
		attempts = 1
	}
	return retry.Policy{Attempts: attempts, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}
