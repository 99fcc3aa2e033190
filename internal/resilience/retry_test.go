package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestRetryPolicyDelayGrowth(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:      100 * time.Millisecond,
		Multiplier:     2,
		MaxDelay:       time.Second,
		JitterFraction: 0.5,
	}

	for range 200 {
		d := p.Delay(0)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("Delay(0) = %v, want within [50ms, 150ms]", d)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{" 10 ", 10 * time.Second},
		{"-3", 0},
		{"0", 0},
		{"99999", time.Hour},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.value); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	date := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(date); got <= 0 || got > 30*time.Second {
		t.Errorf("ParseRetryAfter(%q) = %v, want (0, 30s]", date, got)
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &APIError{StatusCode: 503}, true},
		{"throttled", &APIError{StatusCode: 429}, true},
		{"not found", &APIError{StatusCode: 404}, false},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"transport", &TransportError{Op: "send", Err: errors.New("connection reset by peer")}, true},
		{"fatal", Fatal(errors.New("client banned")), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped api", fmt.Errorf("detail fetch: %w", &APIError{StatusCode: 500}), true},
		{"plain", errors.New("boom"), true},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("%s: Retryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := fmt.Errorf("call: %w", &APIError{StatusCode: 429, RetryAfter: 7 * time.Second})
	if got := RetryAfterHint(err); got != 7*time.Second {
		t.Fatalf("hint = %v, want 7s", got)
	}
	if got := RetryAfterHint(errors.New("boom")); got != 0 {
		t.Fatalf("hint = %v, want 0", got)
	}
}
