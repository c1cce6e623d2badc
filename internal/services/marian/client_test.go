package marian_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"livesub/internal/services/marian"
	"livesub/internal/services/retry"
)

func TestTranslatePostsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["text"] != "Good morning" || req["source"] != "en" || req["target"] != "ar" || req["model"] != "opus-mt-en-ar" {
			t.Errorf("unexpected request %v", req)
		}
		_, _ = w.Write([]byte(`{"translation":" صباح الخير "}`))
	}))
	defer server.Close()

	client := marian.NewClient(marian.Config{BaseURL: server.URL, Model: "opus-mt-en-ar"})
	got, err := client.Translate(context.Background(), "  Good morning ", "en", "ar")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "صباح الخير" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestTranslateRetriesThenFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := marian.NewClient(marian.Config{BaseURL: server.URL},
		marian.WithRetryPolicy(retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	if _, err := client.Translate(context.Background(), "hi", "en", "ar"); err == nil {
		t.Fatal("expected error after retries")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestTranslateRejectsBlankText(t *testing.T) {
	client := marian.NewClient(marian.Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Translate(context.Background(), "  ", "en", "ar"); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()
	if err := marian.NewClient(marian.Config{BaseURL: server.URL}).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}
