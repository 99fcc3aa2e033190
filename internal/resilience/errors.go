// Package resilience wraps upstream provider calls with rate pacing,
// retries, circuit breaking and in-flight coalescing in front of the
// two-tier cache.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCircuitOpen rejects calls while a breaker judges the upstream unhealthy.
var ErrCircuitOpen = errors.New("circuit open")

// APIError is an HTTP-level failure from an upstream provider.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter carries the server's requested delay, when present.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// Retryable reports whether the status class is worth another attempt:
// throttling and server errors are, other client errors are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError is a network-level failure below the HTTP layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FatalError marks a failure as permanent so the retry loop surfaces it
// immediately. Providers use it for conditions a retry cannot fix, like a
// banned client or a request the upstream rejected as malformed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Retryable classifies an attempt's failure. Timeouts, transport failures,
// 429s and 5xx responses are retryable; context cancellation, fatal-marked
// errors and the remaining 4xx class are not. Unrecognized errors default to
// retryable, matching the treatment of plain connection resets.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Retryable()
	}
	return true
}

// IsRateLimited reports whether err is an upstream throttling response.
func IsRateLimited(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.StatusCode == http.StatusTooManyRequests
}

// RetryAfterHint extracts the server-requested delay from err, zero when
// absent.
func RetryAfterHint(err error) time.Duration {
	var api *APIError
	if errors.As(err, &api) {
		return api.RetryAfter
	}
	return 0
}
