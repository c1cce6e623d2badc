// Package retry runs HTTP-style operations with exponential backoff.
//
// Failures are retried when they are HTTP 408/429/5xx responses (surfaced as
// *StatusError), network timeouts, refused connections, or errors that report
// themselves as retryable. A Retry-After hint on a StatusError replaces the
// next computed delay, capped at the policy maximum. Context cancellation
// aborts immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultAttempts  = 5
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Policy bounds how often and how slowly an operation is retried.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy mirrors the delays used for remote model endpoints.
func DefaultPolicy() Policy {
	return Policy{Attempts: defaultAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "request"
	}
	return fmt.Sprintf("%s: http %d: %s", op, e.StatusCode, strings.TrimSpace(e.Body))
}

// NewStatusError builds a StatusError from a response whose body was already read.
func NewStatusError(op string, resp *http.Response, body []byte) *StatusError {
	retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: retryAfter,
	}
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are exhausted. The returned error wraps the last failure.
func Do(ctx context.Context, policy Policy, op string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := policy.attempts()
	schedule := newSchedule(policy)
	b := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(attempts-1)), ctx)

	tries := 0
	err := backoff.Retry(func() error {
		tries++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !Retryable(err) {
			return backoff.Permanent(err)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			schedule.hint(statusErr.RetryAfter)
		}
		return err
	}, b)
	if err == nil {
		return nil
	}
	if tries > 1 {
		return fmt.Errorf("%s: failed after %d attempts: %w", op, tries, err)
	}
	return err
}

// Retryable classifies transient failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var marked interface{ Retryable() bool }
	if errors.As(err, &marked) {
		return marked.Retryable()
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

// ParseRetryAfter accepts either delta-seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// schedule doubles from BaseDelay up to MaxDelay and lets a server hint
// override the next wait.
type schedule struct {
	exp      *backoff.ExponentialBackOff
	maxDelay time.Duration
	override time.Duration
}

func newSchedule(policy Policy) *schedule {
	base := policy.BaseDelay
	if base < 0 {
		base = 0
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &schedule{exp: exp, maxDelay: maxDelay}
}

func (s *schedule) hint(delay time.Duration) {
	s.override = delay
}

func (s *schedule) NextBackOff() time.Duration {
	next := s.exp.NextBackOff()
	if s.override > 0 {
		next = s.override
		s.override = 0
	}
	if next > s.maxDelay {
		next = s.maxDelay
	}
	return next
}

func (s *schedule) Reset() {
	s.exp.Reset()
	s.override = 0
}
