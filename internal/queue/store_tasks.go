package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task ID is unknown.
var ErrTaskNotFound = errors.New("task not found")

// NewTask inserts a pending task. An empty ID is replaced with a random UUID.
func (s *Store) NewTask(ctx context.Context, params NewTaskParams) (*Task, error) {
	if strings.TrimSpace(params.SourcePath) == "" {
		return nil, errors.New("task source path is required")
	}
	if strings.TrimSpace(params.WorkDir) == "" {
		return nil, errors.New("task work directory is required")
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}
	timestamp := nowString()

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO tasks (
            id, source_path, file_name, fingerprint, work_dir, status,
            start_from_ms, translate, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.SourcePath,
		nullableString(params.FileName),
		nullableString(params.Fingerprint),
		params.WorkDir,
		StatusPending,
		params.StartFrom.Milliseconds(),
		boolToInt(params.Translate),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a task. Unknown IDs return ErrTaskNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FindByFingerprint returns the newest completed full-length task for a
// media fingerprint and translation setting, or nil when none exists.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, translate bool) (*Task, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
         WHERE fingerprint = ? AND status = ? AND translate = ? AND start_from_ms = 0
         ORDER BY created_at DESC LIMIT 1`,
		fingerprint, StatusCompleted, boolToInt(translate))
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return task, nil
}

// Remove deletes a task row.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
