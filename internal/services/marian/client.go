// Package marian wraps a MarianMT translation sidecar: POST /translate with a
// JSON body, GET /health for readiness.
package marian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livesub/internal/services/retry"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the sidecar connection settings.
type Config struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client talks to the sidecar.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// NewClient constructs a sidecar client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
	Model  string `json:"model,omitempty"`
}

type translateResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error"`
}

// Translate renders text from source into target language.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("marian translate: text required")
	}
	if c.cfg.BaseURL == "" {
		return "", errors.New("marian translate: base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "translate")
	if err != nil {
		return "", fmt.Errorf("marian translate: build url: %w", err)
	}
	encoded, err := json.Marshal(translateRequest{Text: text, Source: source, Target: target, Model: c.cfg.Model})
	if err != nil {
		return "", fmt.Errorf("marian translate: encode body: %w", err)
	}

	var translation string
	err = retry.Do(ctx, c.policy, "marian translate", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("marian translate: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("marian translate: http error (timeout=%s): %w", c.httpClient.Timeout, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("marian translate: read body: %w", err)
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return retry.NewStatusError("marian translate", resp, body)
		}
		var decoded translateResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("marian translate: decode response: %w", err)
		}
		if msg := strings.TrimSpace(decoded.Error); msg != "" {
			return fmt.Errorf("marian translate: sidecar error: %s", msg)
		}
		translation = strings.TrimSpace(decoded.Translation)
		if translation == "" {
			return errors.New("marian translate: empty translation")
		}
		return nil
	})
	return translation, err
}

// HealthCheck verifies the sidecar responds on /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return errors.New("marian health: base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "health")
	if err != nil {
		return fmt.Errorf("marian health: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("marian health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marian health: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return retry.NewStatusError("marian health", resp, body)
	}
	return nil
}
