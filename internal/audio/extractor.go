package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"livesub/internal/logging"
)

// Extractor reads a Source and emits fixed-duration frames.
type Extractor struct {
	source     Source
	sampleRate int
	frame      time.Duration
	logger     *slog.Logger
}

// NewExtractor builds an extractor. Zero values fall back to 16 kHz and
// 100 ms frames.
func NewExtractor(source Source, sampleRate int, frame time.Duration, logger *slog.Logger) *Extractor {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frame <= 0 {
		frame = 100 * time.Millisecond
	}
	return &Extractor{
		source:     source,
		sampleRate: sampleRate,
		frame:      frame,
		logger:     logging.NewComponentLogger(logger, "extractor"),
	}
}

// SampleRate returns the rate frames are produced at.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// FrameDuration returns the nominal frame length.
func (e *Extractor) FrameDuration() time.Duration { return e.frame }

// Run streams frames into out until the source is exhausted or ctx is done.
// out is closed when Run returns.
func (e *Extractor) Run(ctx context.Context, from time.Duration, out chan<- Frame) (err error) {
	defer close(out)
	if from < 0 {
		from = 0
	}

	stream, err := e.source.Open(ctx, from)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := stream.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	samplesPerFrame := DurationSamples(e.frame, e.sampleRate)
	if samplesPerFrame <= 0 {
		samplesPerFrame = 1
	}
	buf := make([]byte, samplesPerFrame*2)
	emitted := 0
	frames := 0
	for {
		n, readErr := io.ReadFull(stream, buf)
		if n >= 2 {
			samples := DecodePCM16(buf[:n])
			frame := Frame{
				Start:   from + SamplesDuration(emitted, e.sampleRate),
				Samples: samples,
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
			emitted += len(samples)
			frames++
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read pcm: %w", readErr)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	e.logger.Debug("audio extraction finished",
		logging.Int("frames", frames),
		logging.Duration("audio_duration", SamplesDuration(emitted, e.sampleRate)),
		logging.Duration("from", from),
	)
	return nil
}
