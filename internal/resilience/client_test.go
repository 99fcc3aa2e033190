package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestClient(policy RetryPolicy) *Client {
	return NewClient("anidb", policy, NewPacer(0), nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var fastPolicy = RetryPolicy{
	MaxAttempts:    3,
	BaseDelay:      time.Millisecond,
	MaxDelay:       5 * time.Millisecond,
	RateLimitDelay: time.Millisecond,
}

func TestClientRetriesUntilSuccess(t *testing.T) {
	c := newTestClient(RetryPolicy{
		MaxAttempts:    5,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RateLimitDelay: time.Millisecond,
	})

	calls := 0
	data, err := c.Do(context.Background(), "anidb:anime_details", func(ctx context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, &APIError{StatusCode: 503}
		}
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ok" {
		t.Fatalf("data = %q, want ok", data)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestClientFatalFailsFast(t *testing.T) {
	c := newTestClient(fastPolicy)

	calls := 0
	_, err := c.Do(context.Background(), "anidb:anime_details", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &APIError{StatusCode: 404, Message: "no such anime"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on fatal)", calls)
	}
	var api *APIError
	if !errors.As(err, &api) || api.StatusCode != 404 {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
}

func TestClientExhaustsAttempts(t *testing.T) {
	c := newTestClient(fastPolicy)

	calls := 0
	_, err := c.Do(context.Background(), "anidb:anime_details", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &APIError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	// The last failure stays classifiable through the wrap.
	var api *APIError
	if !errors.As(err, &api) || api.StatusCode != 500 {
		t.Fatalf("err = %v, want wrapped 500 APIError", err)
	}
}

func TestClientHonorsRetryAfter(t *testing.T) {
	c := newTestClient(RetryPolicy{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		RateLimitDelay: time.Millisecond,
	})

	start := time.Now()
	calls := 0
	data, err := c.Do(context.Background(), "anidb:search_anime", func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, &APIError{StatusCode: 429, RetryAfter: 60 * time.Millisecond}
		}
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ok" {
		t.Fatalf("data = %q, want ok", data)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least the 60ms Retry-After", elapsed)
	}
}

func TestClientStopsOnContextDeadline(t *testing.T) {
	c := newTestClient(RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := c.Do(ctx, "anidb:anime_details", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &APIError{StatusCode: 503}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (deadline hit during backoff)", calls)
	}
}
