package retry_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"livesub/internal/services/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoRetriesServerErrors(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(4), "whisper transcribe", func(context.Context) error {
		calls++
		if calls < 3 {
			return &retry.StatusError{StatusCode: http.StatusServiceUnavailable, Body: "warming up"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(4), "translate", func(context.Context) error {
		calls++
		return &retry.StatusError{StatusCode: http.StatusBadRequest, Body: "bad"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestDoReportsAttemptsWhenExhausted(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(3), "llm complete", func(context.Context) error {
		calls++
		return &retry.StatusError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Do(ctx, fastPolicy(5), "op", func(context.Context) error {
		calls++
		cancel()
		return &retry.StatusError{StatusCode: http.StatusBadGateway}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

type flaky struct{}

func (flaky) Error() string   { return "empty content" }
func (flaky) Retryable() bool { return true }

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"timeout status", &retry.StatusError{StatusCode: http.StatusRequestTimeout}, true},
		{"server error", &retry.StatusError{StatusCode: http.StatusInternalServerError}, true},
		{"unauthorized", &retry.StatusError{StatusCode: http.StatusUnauthorized}, false},
		{"self-reported", flaky{}, true},
		{"plain", errors.New("nope"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := retry.ParseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse: %v %v", d, ok)
	}
	if _, ok := retry.ParseRetryAfter("-1"); ok {
		t.Fatal("expected negative value to be rejected")
	}
	if _, ok := retry.ParseRetryAfter(""); ok {
		t.Fatal("expected empty value to be rejected")
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if d, ok := retry.ParseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("unexpected date parse: %v %v", d, ok)
	}
}
