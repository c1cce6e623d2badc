package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkRunning moves a pending task to running and stamps its heartbeat.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusRunning, now, now, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("mark running %s: %w", id, ErrTaskNotFound)
	}
	return nil
}

// UpdateProgress records emitted cues and the latest cue end, refreshing the
// heartbeat.
func (s *Store) UpdateProgress(ctx context.Context, id string, cues int, position time.Duration) error {
	now := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET cues_emitted = ?, position_ms = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		cues, position.Milliseconds(), now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for a running task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Finish records a terminal status. Tasks already in a terminal status are
// left untouched so a cancellation is never overwritten by a later failure.
func (s *Store) Finish(ctx context.Context, id string, status Status, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish task %s: status %q is not terminal", id, status)
	}
	now := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, finished_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		status, nullableString(message), now, now, id, StatusPending, StatusRunning,
	); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

// ReclaimStale fails running tasks whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, error_message = ?, finished_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusFailed, StaleReason, now, now,
		StatusRunning, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// FailActive fails every pending or running task with reason. The daemon uses
// it at startup and shutdown since uploads do not survive a restart.
func (s *Store) FailActive(ctx context.Context, reason string) (int64, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, error_message = ?, finished_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, reason, now, now, StatusPending, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail active tasks: %w", err)
	}
	return res.RowsAffected()
}
