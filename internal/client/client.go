package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"livesub/internal/api"
	"livesub/internal/config"
	"livesub/internal/queue"
)

// ErrAPIUnavailable is returned when no daemon address is configured or the
// daemon cannot be reached.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

const requestTimeout = 30 * time.Second

// APIError reports a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the services sentinel matching the error kind.
func (e *APIError) Unwrap() error {
	if e.Kind == "" && e.StatusCode == http.StatusNotFound {
		return api.MarkerForKind("not_found")
	}
	return api.MarkerForKind(e.Kind)
}

// Client is a daemon API client.
type Client struct {
	base  *url.URL
	token string
	// No timeout: transcription streams stay open for the whole run.
	http *http.Client
}

// New builds a client for the daemon bound at bind ("host:port" or a URL).
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{base: base, token: token, http: &http.Client{}}, nil
}

// FromConfig builds a client from the api_bind and api_token settings.
func FromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrAPIUnavailable
	}
	return New(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// BaseURL returns the daemon root URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health checks GET /health once.
func (c *Client) Health(ctx context.Context) error {
	var payload api.HealthResponse
	if err := c.getJSON(ctx, "/health", nil, &payload); err != nil {
		return err
	}
	if payload.Status != "ok" {
		return fmt.Errorf("daemon health status %q", payload.Status)
	}
	return nil
}

// WaitHealthy polls /health up to attempts times, interval apart.
func (c *Client) WaitHealthy(ctx context.Context, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error { return c.Health(ctx) }, policy)
	if err != nil {
		return fmt.Errorf("daemon at %s not healthy after %d attempts: %w", c.BaseURL(), attempts, err)
	}
	return nil
}

// Cancel asks the daemon to stop a task.
func (c *Client) Cancel(ctx context.Context, id string) (string, error) {
	var payload api.MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/cancel/"+url.PathEscape(id), nil, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// Cleanup removes a task and its work directory.
func (c *Client) Cleanup(ctx context.Context, id string) (string, error) {
	var payload api.MessageResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/cleanup/"+url.PathEscape(id), nil, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// Tasks lists tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, statuses ...queue.Status) ([]api.TaskView, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", string(status))
	}
	var payload api.TaskListResponse
	if err := c.getJSON(ctx, "/api/tasks", query, &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

// Task returns one task.
func (c *Client) Task(ctx context.Context, id string) (api.TaskView, error) {
	var payload api.TaskResponse
	if err := c.getJSON(ctx, "/api/tasks/"+url.PathEscape(id), nil, &payload); err != nil {
		return api.TaskView{}, err
	}
	return payload.Task, nil
}

// Status returns the daemon status. withHealth runs the sidecar checks.
func (c *Client) Status(ctx context.Context, withHealth bool) (api.DaemonStatus, error) {
	query := url.Values{}
	if !withHealth {
		query.Set("health", "0")
	}
	var payload api.DaemonStatus
	if err := c.getJSON(ctx, "/api/status", query, &payload); err != nil {
		return api.DaemonStatus{}, err
	}
	return payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	return c.send(ctx, method, endpoint.String(), out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Kind = payload.Kind
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func wrapTransport(err error) error {
	if IsAPIUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrAPIUnavailable, err)
	}
	return err
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAPIUnavailable) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
