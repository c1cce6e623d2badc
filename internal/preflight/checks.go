package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"livesub/internal/config"
	"livesub/internal/deps"
	"livesub/internal/services/llm"
	"livesub/internal/services/marian"
	"livesub/internal/services/retry"
	"livesub/internal/services/whisper"
)

const sidecarTimeout = 5 * time.Second

// HealthChecker is implemented by the sidecar clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckTranscriptionSidecar probes the whisper HTTP sidecar.
func CheckTranscriptionSidecar(ctx context.Context, cfg config.Transcription) Result {
	const name = "Transcription sidecar"
	if cfg.URL == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	client := whisper.NewClient(whisper.ClientConfig{BaseURL: cfg.URL, Model: cfg.Model},
		whisper.WithRetryPolicy(retry.Policy{Attempts: 1}))
	return CheckSidecar(ctx, name, cfg.URL, client)
}

// CheckTranslationSidecar probes the MarianMT HTTP sidecar.
func CheckTranslationSidecar(ctx context.Context, cfg config.Translation) Result {
	const name = "Translation sidecar"
	if cfg.URL == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	client := marian.NewClient(marian.Config{BaseURL: cfg.URL, Model: cfg.Model},
		marian.WithRetryPolicy(retry.Policy{Attempts: 1}))
	return CheckSidecar(ctx, name, cfg.URL, client)
}

// CheckSidecar runs a single bounded health probe.
func CheckSidecar(ctx context.Context, name, url string, checker HealthChecker) Result {
	checkCtx, cancel := context.WithTimeout(ctx, sidecarTimeout)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", url, summarizeError("sidecar", err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", url)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeError(what string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", what)
	}
	return err.Error()
}
