package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livesub/internal/services/retry"
)

const defaultHTTPTimeout = 120 * time.Second

// ClientConfig captures the sidecar connection settings.
type ClientConfig struct {
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Client wraps the faster-whisper HTTP sidecar.
type Client struct {
	cfg        ClientConfig
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
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient constructs a sidecar client.
func NewClient(cfg ClientConfig, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.Language = isoLanguage(cfg.Language)
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Transcribe uploads a WAV payload and returns the recognised segments.
func (c *Client) Transcribe(ctx context.Context, wav []byte, filename string) (Result, error) {
	var result Result
	if c.cfg.BaseURL == "" {
		return result, errors.New("whisper transcribe: base url required")
	}
	if len(wav) == 0 {
		return result, errors.New("whisper transcribe: empty audio")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "segment.wav"
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "transcribe")
	if err != nil {
		return result, fmt.Errorf("whisper transcribe: build url: %w", err)
	}

	err = retry.Do(ctx, c.policy, "whisper transcribe", func(ctx context.Context) error {
		body, contentType, err := c.multipartBody(wav, filename)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return fmt.Errorf("whisper transcribe: new request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("whisper transcribe: http error (timeout=%s): %w", c.httpClient.Timeout, err)
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("whisper transcribe: read body: %w", err)
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return retry.NewStatusError("whisper transcribe", resp, payload)
		}
		var decoded Result
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return fmt.Errorf("whisper transcribe: decode response: %w", err)
		}
		result = decoded
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(result.Text) == "" {
		result.Text = joinText(result.Segments)
	}
	return result, nil
}

func (c *Client) multipartBody(wav []byte, filename string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("whisper transcribe: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", fmt.Errorf("whisper transcribe: write form file: %w", err)
	}
	fields := map[string]string{"model": c.cfg.Model}
	if c.cfg.Language != "" {
		fields["language"] = c.cfg.Language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("whisper transcribe: write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper transcribe: close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// HealthCheck verifies the sidecar responds on /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return errors.New("whisper health: base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "health")
	if err != nil {
		return fmt.Errorf("whisper health: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("whisper health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper health: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return retry.NewStatusError("whisper health", resp, body)
	}
	return nil
}
