package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"livesub/internal/logging"
	"livesub/internal/services"
	"livesub/internal/translate"
)

// Evaluator translates a corpus and scores the output.
type Evaluator struct {
	translator translate.Translator
	workers    int
	logger     *slog.Logger
}

// Report is the outcome of one evaluation run.
type Report struct {
	Benchmark   Benchmark     `json:"-"`
	Scores      Scores        `json:"scores"`
	Regressions []Regression  `json:"regressions,omitempty"`
	Hypotheses  []string      `json:"-"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Passed reports whether no metric regressed.
func (r Report) Passed() bool { return len(r.Regressions) == 0 }

// NewEvaluator builds an evaluator running up to workers translations at once.
func NewEvaluator(translator translate.Translator, workers int, logger *slog.Logger) *Evaluator {
	if workers <= 0 {
		workers = 1
	}
	return &Evaluator{
		translator: translator,
		workers:    workers,
		logger:     logging.NewComponentLogger(logger, "evaluation"),
	}
}

// Translate runs the translator over sources, preserving order. The first
// failure cancels outstanding work.
func (e *Evaluator) Translate(ctx context.Context, sources []string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]string, len(sources))
	sem := make(chan struct{}, e.workers)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		done     atomic.Int64
		sampleMu sync.Mutex
	)
	sampler := logging.NewProgressSampler(10)

	for i, src := range sources {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, src string) {
			defer func() { <-sem; wg.Done() }()
			translated, err := e.translator.Translate(ctx, src)
			if err != nil {
				errOnce.Do(func() {
					firstErr = services.Wrap(services.ErrExternalTool, "evaluation", "translate",
						fmt.Sprintf("sentence %d failed", i+1), err)
					cancel()
				})
				return
			}
			out[i] = translated
			n := done.Add(1)
			percent := float64(n) / float64(len(sources)) * 100
			sampleMu.Lock()
			emit := sampler.ShouldLog(percent, "translation")
			sampleMu.Unlock()
			if emit {
				e.logger.Info("evaluation progress",
					logging.Int64("translated", n),
					logging.Int("total", len(sources)),
					logging.Float64("percent", percent),
				)
			}
		}(i, src)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Run translates sources, scores them against references and checks the
// result against b.
func (e *Evaluator) Run(ctx context.Context, b Benchmark, sources, references []string, tol Tolerance) (Report, error) {
	if len(sources) != len(references) {
		return Report{}, services.Wrap(services.ErrValidation, "evaluation", "run",
			fmt.Sprintf("%d sources but %d references", len(sources), len(references)), nil)
	}
	started := time.Now()
	hyps, err := e.Translate(ctx, sources)
	if err != nil {
		return Report{}, err
	}
	scores := Score(hyps, references)
	report := Report{
		Benchmark:   b,
		Scores:      scores,
		Regressions: Check(b, scores, tol),
		Hypotheses:  hyps,
		Elapsed:     time.Since(started),
	}
	e.logger.Info("evaluation finished",
		logging.String("benchmark", b.Name),
		logging.String("translator", e.translator.Name()),
		logging.Float64("chrf", scores.ChrF),
		logging.Float64("bleu", scores.BLEU),
		logging.Float64("ter", scores.TER),
		logging.Int("regressions", len(report.Regressions)),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}
