package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"livesub/internal/config"
)

const userAgent = "livesub/1"

// Service is the notification surface used by the daemon and the CLI.
type Service interface {
	NotifyTaskCompleted(ctx context.Context, fileName string, cues int, elapsed time.Duration) error
	NotifyTaskFailed(ctx context.Context, fileName string, err error) error
	NotifyRegression(ctx context.Context, benchmark string, failures []string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		failures: cfg.Notifications.NotifyFailures,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	failures bool
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, fileName string, cues int, elapsed time.Duration) error {
	elapsed = max(elapsed.Round(time.Second), 0)
	return n.send(ctx, message{
		title: "livesub - Subtitles ready",
		body:  fmt.Sprintf("%s: %d cues in %s", displayName(fileName), cues, elapsed),
		tags:  []string{"livesub", "task", "completed"},
	})
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, fileName string, err error) error {
	if !n.failures {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, message{
		title:    "livesub - Task failed",
		body:     fmt.Sprintf("%s: %s", displayName(fileName), reason),
		tags:     []string{"livesub", "task", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRegression(ctx context.Context, benchmark string, failures []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Translation quality regressed on %s", strings.TrimSpace(benchmark))
	for _, f := range failures {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return n.send(ctx, message{
		title:    "livesub - Evaluation regression",
		body:     b.String(),
		tags:     []string{"livesub", "evaluation", "regression"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "livesub - Test",
		body:     "Notification delivery works",
		tags:     []string{"livesub", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(fileName string) string {
	if name := strings.TrimSpace(fileName); name != "" {
		return name
	}
	return "upload"
}

type noopService struct{}

func (noopService) NotifyTaskCompleted(context.Context, string, int, time.Duration) error { return nil }
func (noopService) NotifyTaskFailed(context.Context, string, error) error                 { return nil }
func (noopService) NotifyRegression(context.Context, string, []string) error              { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
