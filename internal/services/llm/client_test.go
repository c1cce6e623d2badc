package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, `{"ok":true}`))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "```json\n{\"ok\":true}\n```"))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientTranslateSendsPromptAndParsesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatCompletionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "Good morning" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[0].Content, "English") || !strings.Contains(req.Messages[0].Content, "Arabic") {
			t.Errorf("expected language names in system prompt, got %q", req.Messages[0].Content)
		}
		completionHandler(t, "```json\n{\"translation\":\"صباح الخير\"}\n```")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	translation, err := client.Translate(context.Background(), "Good morning", "en", "ar")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translation.Text != "صباح الخير" {
		t.Fatalf("unexpected translation %q", translation.Text)
	}
	if !strings.Contains(translation.Raw, "```") {
		t.Fatalf("expected raw payload to retain code fence, got %q", translation.Raw)
	}
}

func TestClientTranslateRejectsBlankText(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Translate(context.Background(), "   ", "en", "ar"); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestClientTranslateDeltaContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"delta": map[string]any{"content": `{"translation":"مرحبا"}`},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	translation, err := client.Translate(context.Background(), "Hello", "en", "ar")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translation.Text != "مرحبا" {
		t.Fatalf("unexpected translation %q", translation.Text)
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, ""))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(2),
	)
	_, err := client.Translate(context.Background(), "Hello", "en", "ar")
	if err == nil {
		t.Fatal("expected translate to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		completionHandler(t, `{"translation":"شكرا"}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		WithRetryMaxAttempts(5),
	)
	translation, err := client.Translate(context.Background(), "Thanks", "en", "ar")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translation.Text != "شكرا" {
		t.Fatalf("unexpected translation %q", translation.Text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"translation":"نعم"}`
		}
		completionHandler(t, content)(w, r)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(5),
	)
	translation, err := client.Translate(context.Background(), "Yes", "en", "ar")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translation.Text != "نعم" {
		t.Fatalf("unexpected translation %q", translation.Text)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed Translation
	if err := DecodeLLMJSON(`Sure! {"translation":"أهلا"} Hope that helps.`, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if parsed.Text != "أهلا" {
		t.Fatalf("unexpected text %q", parsed.Text)
	}
	if err := DecodeLLMJSON("  ", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
