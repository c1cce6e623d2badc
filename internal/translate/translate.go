// Package translate renders transcribed text in the target language and turns
// transcript segments into subtitle cues.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"livesub/internal/config"
	"livesub/internal/services"
	"livesub/internal/services/llm"
	"livesub/internal/services/marian"
	"livesub/internal/services/retry"
)

// Translator renders one line of source-language text in the target language.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string) (string, error)
}

type llmClient interface {
	Translate(ctx context.Context, text, source, target string) (llm.Translation, error)
}

// LLMTranslator uses an OpenRouter-compatible chat model.
type LLMTranslator struct {
	client llmClient
	source string
	target string
}

// NewLLMTranslator wraps an LLM client for the given language pair.
func NewLLMTranslator(client llmClient, source, target string) *LLMTranslator {
	return &LLMTranslator{client: client, source: source, target: target}
}

func (t *LLMTranslator) Name() string { return config.TranslationLLM }

func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	result, err := t.client.Translate(ctx, text, t.source, t.target)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

type sidecarClient interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// HTTPTranslator uses a MarianMT sidecar.
type HTTPTranslator struct {
	client sidecarClient
	source string
	target string
}

// NewHTTPTranslator wraps a sidecar client for the given language pair.
func NewHTTPTranslator(client sidecarClient, source, target string) *HTTPTranslator {
	return &HTTPTranslator{client: client, source: source, target: target}
}

func (t *HTTPTranslator) Name() string { return config.TranslationHTTP }

func (t *HTTPTranslator) Translate(ctx context.Context, text string) (string, error) {
	return t.client.Translate(ctx, text, t.source, t.target)
}

// Passthrough returns the source text; used when translation is disabled.
type Passthrough struct{}

func (Passthrough) Name() string { return config.TranslationPassthrough }

func (Passthrough) Translate(_ context.Context, text string) (string, error) {
	return strings.TrimSpace(text), nil
}

// New builds the translator selected by cfg. A disabled translation section
// yields Passthrough regardless of backend.
func New(cfg *config.Config) (Translator, error) {
	tc := cfg.Translation
	if !tc.Enabled {
		return Passthrough{}, nil
	}
	switch tc.Backend {
	case config.TranslationPassthrough:
		return Passthrough{}, nil
	case config.TranslationHTTP:
		client := marian.NewClient(marian.Config{
			BaseURL:        tc.URL,
			Model:          tc.Model,
			TimeoutSeconds: tc.TimeoutSeconds,
		}, marian.WithRetryPolicy(retryPolicy(tc.RetryAttempts)))
		return NewHTTPTranslator(client, tc.SourceLanguage, tc.TargetLanguage), nil
	case config.TranslationLLM:
		llmCfg := cfg.GetLLM()
		client := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(tc.RetryAttempts))
		return NewLLMTranslator(client, tc.SourceLanguage, tc.TargetLanguage), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "translation", "select backend",
			fmt.Sprintf("unknown translation backend %q", tc.Backend), nil)
	}
}

func retryPolicy(attempts int) retry.Policy {
	if attempts <= 0 {
		attempts = 1
	}
	return retry.Policy{Attempts: attempts, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}
