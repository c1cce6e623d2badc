package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"livesub/internal/services/retry"
	"livesub/internal/services/whisper"
)

func fastPolicy() whisper.Option {
	return whisper.WithRetryPolicy(retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func TestClientTranscribeSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "small" {
			t.Errorf("expected model small, got %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("expected language en, got %q", got)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFFDATA" || header.Filename != "seg-3.wav" {
				t.Errorf("unexpected upload %q %q", header.Filename, data)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"language": "en",
			"segments": []map[string]any{
				{"text": " hello ", "start": 0.0, "end": 1.2},
				{"text": "world", "start": 1.2, "end": 2.0},
			},
		})
	}))
	defer server.Close()

	client := whisper.NewClient(whisper.ClientConfig{BaseURL: server.URL + "/", Language: "en-US"}, fastPolicy())
	result, err := client.Transcribe(context.Background(), []byte("RIFFDATA"), "seg-3.wav")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(result.Segments) != 2 || result.Segments[1].End != 2.0 {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}
	if result.Text != "hello world" {
		t.Fatalf("expected joined text, got %q", result.Text)
	}
}

func TestClientTranscribeRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"ok","segments":[{"text":"ok","start":0,"end":1}]}`))
	}))
	defer server.Close()

	client := whisper.NewClient(whisper.ClientConfig{BaseURL: server.URL}, fastPolicy())
	result, err := client.Transcribe(context.Background(), []byte("x"), "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if result.Text != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("unexpected result %+v after %d calls", result, calls)
	}
}

func TestClientTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client := whisper.NewClient(whisper.ClientConfig{BaseURL: server.URL}, fastPolicy())
	_, err := client.Transcribe(context.Background(), []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestClientHealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := whisper.NewClient(whisper.ClientConfig{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy sidecar, got %v", err)
	}
	healthy.Store(false)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health failure")
	}
}
