package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"livesub/internal/config"
	"livesub/internal/notifications"
)

type recorder struct {
	mu   sync.Mutex
	msgs []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.msgs...)
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *recorder) {
	t.Helper()
	got := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		defer got.mu.Unlock()
		got.msgs = append(got.msgs, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func configFor(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyTaskCompleted(context.Background(), "clip.mkv", 3, time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	srv, got := newNtfyServer(t, http.StatusOK)
	svc := notifications.NewService(configFor(srv.URL))
	ctx := context.Background()

	if err := svc.NotifyTaskCompleted(ctx, "episode.mkv", 42, 95*time.Second+400*time.Millisecond); err != nil {
		t.Fatalf("NotifyTaskCompleted: %v", err)
	}
	if err := svc.NotifyTaskFailed(ctx, "", errors.New("whisper unreachable")); err != nil {
		t.Fatalf("NotifyTaskFailed: %v", err)
	}
	if err := svc.NotifyRegression(ctx, "flores101-devtest", []string{"chrF 0.400 outside limit 0.546"}); err != nil {
		t.Fatalf("NotifyRegression: %v", err)
	}

	msgs := got.all()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(msgs))
	}
	completed := msgs[0]
	if completed.title != "livesub - Subtitles ready" || completed.body != "episode.mkv: 42 cues in 1m35s" {
		t.Fatalf("unexpected completion message %+v", completed)
	}
	if completed.tags != "livesub,task,completed" || completed.priority != "" {
		t.Fatalf("unexpected completion headers %+v", completed)
	}
	failed := msgs[1]
	if failed.body != "upload: whisper unreachable" || failed.priority != "high" {
		t.Fatalf("unexpected failure message %+v", failed)
	}
	regression := msgs[2]
	if !strings.Contains(regression.body, "flores101-devtest") || !strings.Contains(regression.body, "\n- chrF") {
		t.Fatalf("unexpected regression body %q", regression.body)
	}
}

func TestNtfyServiceSkipsFailuresWhenDisabled(t *testing.T) {
	srv, got := newNtfyServer(t, http.StatusOK)
	cfg := configFor(srv.URL)
	cfg.Notifications.NotifyFailures = false
	svc := notifications.NewService(cfg)
	if err := svc.NotifyTaskFailed(context.Background(), "clip.mkv", errors.New("boom")); err != nil {
		t.Fatalf("NotifyTaskFailed: %v", err)
	}
	if n := len(got.all()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusForbidden)
	svc := notifications.NewService(configFor(srv.URL))
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected 403 error with body, got %v", err)
	}
}
