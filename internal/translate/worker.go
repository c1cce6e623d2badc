package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"livesub/internal/logging"
	"livesub/internal/services"
	"livesub/internal/services/retry"
	"livesub/internal/subtitles"
	"livesub/internal/transcribe"
)

// Observer receives per-line translation outcomes for metrics.
type Observer interface {
	Translated(ctx context.Context, latency time.Duration)
	TranslationFailed(ctx context.Context)
}

// Worker turns transcript segments into cues.
type Worker struct {
	translator Translator
	logger     *slog.Logger
	observer   Observer
}

// NewWorker constructs a worker. observer may be nil.
func NewWorker(translator Translator, observer Observer, logger *slog.Logger) *Worker {
	if translator == nil {
		translator = Passthrough{}
	}
	return &Worker{
		translator: translator,
		observer:   observer,
		logger:     logging.NewComponentLogger(logger, "translate"),
	}
}

// Process translates one segment. Failures other than cancellation degrade to
// a cue carrying the source text behind subtitles.TranslationErrorPrefix.
func (w *Worker) Process(ctx context.Context, seg transcribe.Segment) (subtitles.Cue, error) {
	cue := subtitles.Cue{
		Index:  seg.Index,
		Start:  seg.Start,
		End:    seg.End,
		Text:   seg.Text,
		Source: seg.Text,
	}
	if strings.TrimSpace(seg.Text) == "" {
		return cue, nil
	}

	started := time.Now()
	translated, err := w.translator.Translate(ctx, seg.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cue, ctxErr
		}
		if services.IsCancellation(err) {
			return cue, err
		}
		if w.observer != nil {
			w.observer.TranslationFailed(ctx)
		}
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "translation failed; showing source text", "translation_failed",
			logging.Int(logging.FieldSegmentIndex, seg.Index),
			logging.String("backend", w.translator.Name()),
			logging.Bool("retryable", retry.Retryable(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the translation backend health and credentials"),
			logging.String(logging.FieldImpact, "cue shows untranslated text"),
		)
		cue.Text = subtitles.TranslationErrorPrefix + seg.Text
		return cue, nil
	}
	if w.observer != nil {
		w.observer.Translated(ctx, time.Since(started))
	}
	cue.Text = translated
	return cue, nil
}

// Run consumes segments until in closes. out is closed when Run returns.
func (w *Worker) Run(ctx context.Context, in <-chan transcribe.Segment, out chan<- subtitles.Cue) error {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg, ok := <-in:
			if !ok {
				return nil
			}
			cue, err := w.Process(ctx, seg)
			if err != nil {
				return err
			}
			select {
			case out <- cue:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
