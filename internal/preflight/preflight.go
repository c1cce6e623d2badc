package preflight

import (
	"context"

	"livesub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if cfg.Transcription.Backend == config.TranscriptionWhisperHTTP {
		results = append(results, CheckTranscriptionSidecar(ctx, cfg.Transcription))
	}

	if cfg.Translation.Enabled {
		switch cfg.Translation.Backend {
		case config.TranslationHTTP:
			results = append(results, CheckTranslationSidecar(ctx, cfg.Translation))
		case config.TranslationLLM:
			results = append(results, CheckLLM(ctx, "Translation LLM", cfg.GetLLM()))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
