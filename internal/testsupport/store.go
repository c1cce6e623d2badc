package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"livesub/internal/config"
	"livesub/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask inserts a pending task whose work dir lives under the config's work
// directory.
func NewTask(t testing.TB, store *queue.Store, cfg *config.Config, source string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		SourcePath: source,
		FileName:   filepath.Base(source),
		WorkDir:    filepath.Join(cfg.Paths.WorkDir, "pending"),
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
