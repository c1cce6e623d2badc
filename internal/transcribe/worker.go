package transcribe

import (
	"context"
	"log/slog"
	"time"

	"livesub/internal/audio"
	"livesub/internal/logging"
	"livesub/internal/services"
)

// Worker runs a Backend over a stream of segments.
type Worker struct {
	backend Backend
	logger  *slog.Logger
	observe func(ctx context.Context, seg audio.Segment, latency time.Duration)
	next    int
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithObserver registers a callback invoked after each segment is recognised.
func WithObserver(fn func(ctx context.Context, seg audio.Segment, latency time.Duration)) WorkerOption {
	return func(w *Worker) { w.observe = fn }
}

// NewWorker constructs a worker around backend.
func NewWorker(backend Backend, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{backend: backend, logger: logging.NewComponentLogger(logger, "transcribe")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process transcribes one segment.
func (w *Worker) Process(ctx context.Context, seg audio.Segment) ([]Segment, error) {
	started := time.Now()
	spans, err := w.backend.Transcribe(ctx, seg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcription", w.backend.Name(),
			"Speech recognition failed", err)
	}
	latency := time.Since(started)
	if w.observe != nil {
		w.observe(ctx, seg, latency)
	}
	aligned := Align(seg, spans, w.next)
	w.next += len(aligned)
	w.logger.Debug("segment transcribed",
		logging.Int(logging.FieldSegmentIndex, seg.Index),
		logging.Duration("segment_start", seg.Start),
		logging.Duration("segment_end", seg.End),
		logging.Int("spans", len(spans)),
		logging.Int("kept", len(aligned)),
		logging.Duration("latency", latency),
	)
	return aligned, nil
}

// Run consumes segments until in closes. out is closed when Run returns.
func (w *Worker) Run(ctx context.Context, in <-chan audio.Segment, out chan<- Segment) error {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg, ok := <-in:
			if !ok {
				return nil
			}
			results, err := w.Process(ctx, seg)
			if err != nil {
				return err
			}
			for _, res := range results {
				select {
				case out <- res:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
