package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"livesub/internal/evaluation"
	"livesub/internal/logging"
	"livesub/internal/notifications"
	"livesub/internal/translate"
)

// errRegression is returned when a metric falls outside its tolerance.
var errRegression = errors.New("translation quality regressed")

type evaluationResult struct {
	Benchmark string                  `json:"benchmark"`
	Reference evaluation.Scores       `json:"reference"`
	Measured  evaluation.Scores       `json:"measured"`
	Passed    bool                    `json:"passed"`
	Failures  []evaluation.Regression `json:"regressions,omitempty"`
	Elapsed   string                  `json:"elapsed"`
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var (
		benchmark  string
		sourcePath string
		refPath    string
		hypPath    string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the translator against a benchmark corpus",
		Long: "Translate a line-aligned source corpus, score the output against the\n" +
			"reference translations with chrF, BLEU, and TER, and compare the scores\n" +
			"with the published benchmark. Exits non-zero on regression.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, ok := evaluation.Lookup(benchmark)
			if !ok {
				return fmt.Errorf("unknown benchmark %q (see `livesub benchmarks`)", benchmark)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			sources, references, err := evaluation.LoadCorpus(sourcePath, refPath)
			if err != nil {
				return err
			}
			translator, err := translate.New(cfg)
			if err != nil {
				return err
			}

			tol := evaluation.Tolerance{
				ChrF: cfg.Evaluation.ChrFTolerance,
				BLEU: cfg.Evaluation.BLEUTolerance,
				TER:  cfg.Evaluation.TERTolerance,
			}
			report, err := evaluation.NewEvaluator(translator, cfg.Evaluation.Workers, logger).
				Run(cmd.Context(), b, sources, references, tol)
			if err != nil {
				return err
			}
			if hypPath != "" {
				if err := os.WriteFile(hypPath, []byte(strings.Join(report.Hypotheses, "\n")+"\n"), 0o644); err != nil {
					return fmt.Errorf("write hypotheses: %w", err)
				}
			}

			result := evaluationResult{
				Benchmark: b.Name,
				Reference: evaluation.Scores{ChrF: b.ChrF, BLEU: b.BLEU, TER: b.TER, Sentences: b.Sentences},
				Measured:  report.Scores,
				Passed:    report.Passed(),
				Failures:  report.Regressions,
				Elapsed:   report.Elapsed.Round(time.Millisecond).String(),
			}
			if ctx.jsonMode() {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				renderEvaluation(cmd, result)
			}
			if !result.Passed {
				failures := make([]string, 0, len(report.Regressions))
				for _, r := range report.Regressions {
					failures = append(failures, r.String())
				}
				if err := notifications.NewService(cfg).NotifyRegression(cmd.Context(), b.Name, failures); err != nil {
					logger.Warn("regression notification failed", logging.Error(err))
				}
				return errRegression
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&benchmark, "benchmark", "b", evaluation.Benchmarks[0].Name, "Benchmark to compare against")
	cmd.Flags().StringVar(&sourcePath, "source", "", "Source language corpus, one sentence per line")
	cmd.Flags().StringVar(&refPath, "reference", "", "Reference translations, aligned with --source")
	cmd.Flags().StringVar(&hypPath, "hypotheses", "", "Write translated lines to this file")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func renderEvaluation(cmd *cobra.Command, r evaluationResult) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	rows := [][]string{
		{"chrF", fmt.Sprintf("%.3f", r.Reference.ChrF), fmt.Sprintf("%.3f", r.Measured.ChrF)},
		{"BLEU", fmt.Sprintf("%.1f", r.Reference.BLEU), fmt.Sprintf("%.1f", r.Measured.BLEU)},
		{"TER", fmt.Sprintf("%.3f", r.Reference.TER), fmt.Sprintf("%.3f", r.Measured.TER)},
	}
	writeLines(out, renderSectionHeader("Evaluation: "+r.Benchmark, colorize))
	fmt.Fprintln(out, renderTable([]string{"Metric", "Reference", "Measured"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	fmt.Fprintf(out, "%d sentences in %s\n", r.Measured.Sentences, r.Elapsed)
	if r.Passed {
		fmt.Fprintln(out, renderStatusLine("Result", statusOK, "within tolerance", colorize))
		return
	}
	for _, reg := range r.Failures {
		fmt.Fprintln(out, renderStatusLine("Regression", statusError, reg.String(), colorize))
	}
}

func newBenchmarksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "benchmarks",
		Short:       "List the published reference scores",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.jsonMode() {
				return writeJSON(cmd, evaluation.Benchmarks)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderBenchmarkTable(evaluation.Benchmarks))
			return nil
		},
	}
}
