package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"livesub/internal/logs"
)

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) emit(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *collector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d lines, got %#v", n, c.snapshot())
	return nil
}

func appendLine(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livesub.log")
	if err := os.WriteFile(path, []byte("a\nb\r\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	var c collector
	if err := logs.Tail(context.Background(), path, logs.Options{Lines: 2}, c.emit); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	got := c.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestTailFewerLinesThanLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livesub.log")
	if err := os.WriteFile(path, []byte("only\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	var c collector
	if err := logs.Tail(context.Background(), path, logs.Options{Lines: 10}, c.emit); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got := c.snapshot(); len(got) != 1 || got[0] != "only" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestTailMissingFile(t *testing.T) {
	var c collector
	path := filepath.Join(t.TempDir(), "missing.log")
	if err := logs.Tail(context.Background(), path, logs.Options{Lines: 5}, c.emit); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got := c.snapshot(); len(got) != 0 {
		t.Fatalf("expected no lines, got %#v", got)
	}
}

func TestTailFollowAppendsAndWaitsForCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livesub.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c collector
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.Options{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, c.emit)
	}()
	c.waitFor(t, 1)

	appendLine(t, path, "par")
	time.Sleep(50 * time.Millisecond)
	if got := c.snapshot(); len(got) != 1 {
		t.Fatalf("partial line should not be emitted, got %#v", got)
	}
	appendLine(t, path, "tial\nnext\n")
	got := c.waitFor(t, 3)
	if got[1] != "partial" || got[2] != "next" {
		t.Fatalf("unexpected follow lines: %#v", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTailFollowRestartsAfterPointerSwap(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "livesub-1.log")
	second := filepath.Join(dir, "livesub-2.log")
	pointer := filepath.Join(dir, "livesub.log")
	if err := os.WriteFile(first, []byte("old run line that is fairly long\n"), 0o644); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := os.Symlink(first, pointer); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var c collector
	go func() {
		_ = logs.Tail(ctx, pointer, logs.Options{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, c.emit)
	}()
	c.waitFor(t, 1)

	if err := os.WriteFile(second, []byte("new run\n"), 0o644); err != nil {
		t.Fatalf("write second: %v", err)
	}
	if err := os.Remove(pointer); err != nil {
		t.Fatalf("remove pointer: %v", err)
	}
	if err := os.Symlink(second, pointer); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	got := c.waitFor(t, 2)
	if got[1] != "new run" {
		t.Fatalf("expected new run line, got %#v", got)
	}
}

func TestTailStopsOnEmitError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livesub.log")
	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	stop := errors.New("stop")
	err := logs.Tail(context.Background(), path, logs.Options{Lines: 2}, func(string) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("expected emit error, got %v", err)
	}
}
