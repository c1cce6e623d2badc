package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"livesub/internal/logging"
	"livesub/internal/queue"
)

// HeartbeatMonitor manages task heartbeats and stale task reclamation.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale fails running tasks whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
	}
	return reclaimed, nil
}

// StartLoop runs a heartbeat updater for a task until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, taskID string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, taskID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("task finished, heartbeat update cancelled")
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// reclaimLoop periodically reclaims stale tasks until ctx is done.
func (h *HeartbeatMonitor) reclaimLoop(ctx context.Context) {
	if h.heartbeatTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(h.logger, "reclaim stale tasks failed", "heartbeat_reclaim_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "stuck tasks may remain marked running"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}
