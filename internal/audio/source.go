package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"livesub/internal/services"
)

// Source opens a raw PCM stream (s16le, mono) positioned at from.
type Source interface {
	Open(ctx context.Context, from time.Duration) (io.ReadCloser, error)
}

// FFmpegSource decodes the audio of Input through ffmpeg.
type FFmpegSource struct {
	Binary      string
	Input       string
	SampleRate  int
	StreamIndex int // audio stream ordinal; negative selects ffmpeg's default
}

// NewFFmpegSource returns a source for input using binary (default "ffmpeg").
func NewFFmpegSource(binary, input string, sampleRate int) *FFmpegSource {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpegSource{Binary: binary, Input: input, SampleRate: sampleRate, StreamIndex: -1}
}

// Args returns the ffmpeg argument list for a stream starting at from.
func (s *FFmpegSource) Args(from time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if from > 0 {
		args = append(args, "-ss", strconv.FormatFloat(from.Seconds(), 'f', 3, 64))
	}
	args = append(args, "-i", s.Input)
	if s.StreamIndex >= 0 {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", s.StreamIndex))
	}
	args = append(args,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(s.SampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
	return args
}

// Open starts ffmpeg. Closing the returned reader waits for the process and
// reports a non-zero exit together with the tail of its stderr.
func (s *FFmpegSource) Open(ctx context.Context, from time.Duration) (io.ReadCloser, error) {
	if strings.TrimSpace(s.Input) == "" {
		return nil, services.Wrap(services.ErrValidation, "extract", "open source", "input path is required", nil)
	}
	cmd := exec.CommandContext(ctx, s.Binary, s.Args(from)...) //nolint:gosec
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "start ffmpeg", "Failed to launch ffmpeg", err)
	}
	return &commandStream{ctx: ctx, ReadCloser: stdout, cmd: cmd, stderr: stderr}, nil
}

type commandStream struct {
	io.ReadCloser
	ctx    context.Context
	cmd    *exec.Cmd
	stderr *tailBuffer
	once   sync.Once
	err    error
}

func (c *commandStream) Close() error {
	c.once.Do(func() {
		err := c.cmd.Wait()
		if err == nil {
			return
		}
		if ctxErr := c.ctx.Err(); ctxErr != nil {
			c.err = ctxErr
			return
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.err = services.Wrap(services.ErrExternalTool, "extract", "ffmpeg",
				fmt.Sprintf("ffmpeg exited with status %d: %s", exitErr.ExitCode(), c.stderr.String()), err)
			return
		}
		c.err = services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", "wait for ffmpeg", err)
	})
	return c.err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
