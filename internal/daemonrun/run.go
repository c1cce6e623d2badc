package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"livesub/internal/config"
	"livesub/internal/daemon"
	"livesub/internal/deps"
	"livesub/internal/logging"
	"livesub/internal/pipeline"
	"livesub/internal/preflight"
	"livesub/internal/queue"
	"livesub/internal/telemetry"
	"livesub/internal/workflow"
)

const (
	pruneInterval   = 6 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the livesub daemon and blocks until SIGINT/SIGTERM or cmdCtx
// is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("livesub-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "livesub-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.StateDir, "livesubd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	provider, err := telemetry.Setup(signalCtx, cfg.Metrics, opts.Version, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("metric provider shutdown failed", logging.Error(err))
		}
	}()
	metrics, err := pipeline.NewMetrics(provider.Meter(pipeline.MeterName))
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	logPreflight(signalCtx, logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	workflowManager := workflow.NewManager(cfg, store, logger, workflow.WithMetrics(metrics))
	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the api_bind address"),
		)
		return err
	}

	go pruneLoop(signalCtx, logger, cfg, workflowManager)

	<-signalCtx.Done()
	logger.Info("livesub daemon shutting down")
	return nil
}

// pruneLoop removes finished tasks older than the retention window.
func pruneLoop(ctx context.Context, logger *slog.Logger, cfg *config.Config, mgr *workflow.Manager) {
	days := cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := mgr.Prune(ctx, cutoff)
		if err != nil {
			logger.Warn("task prune failed", logging.Error(err))
			return
		}
		if n > 0 {
			logger.Info("pruned finished tasks", logging.Int("count", n), logging.Int("retention_days", days))
		}
	}
	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "tasks depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run livesub status for details"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("transcription_backend", cfg.Transcription.Backend),
		logging.Bool("translation_enabled", cfg.Translation.Enabled),
		logging.String("translation_backend", cfg.Translation.Backend),
		logging.Bool("llm_key_present", cfg.LLM.APIKey != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
