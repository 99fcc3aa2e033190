package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CallFunc is one physical attempt of an upstream call.
type CallFunc func(ctx context.Context) ([]byte, error)

// Client executes one logical outbound call: pacer wait before every
// attempt, classification of the outcome, exponential backoff with jitter
// between retryable failures. Each provider owns a Client configured with
// its pacing and retry policy.
type Client struct {
	name    string
	policy  RetryPolicy
	pacer   *Pacer
	metrics *Metrics
	logger  *slog.Logger
}

// NewClient builds a retrying client. name keys the pacer and log lines,
// typically the provider name. pacer may be shared across clients.
func NewClient(name string, policy RetryPolicy, pacer *Pacer, metrics *Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:    name,
		policy:  policy.withDefaults(),
		pacer:   pacer,
		metrics: metrics,
		logger:  logger,
	}
}

// Do runs fn until it succeeds, fails fatally, or attempts are exhausted.
// op labels the operation in logs and metrics. The last failure is surfaced
// wrapped, so errors.Is/As classification still works on the result.
func (c *Client) Do(ctx context.Context, op string, fn CallFunc) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt - 1)
			if IsRateLimited(lastErr) {
				// Throttled: honor the server's hint on top of backoff.
				extra := RetryAfterHint(lastErr)
				if extra <= 0 {
					extra = c.policy.RateLimitDelay
				}
				delay += extra
			}
			c.logger.Debug("retrying upstream call",
				"provider", c.name, "op", op,
				"attempt", attempt+1, "delay", delay, "error", lastErr)
			c.metrics.retryObserved(op)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx, c.name); err != nil {
				return nil, err
			}
		}

		data, err := fn(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %d attempts exhausted: %w", op, c.policy.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
