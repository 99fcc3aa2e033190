package resilience

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy configures the retrying client. Immutable once handed to a
// Client.
type RetryPolicy struct {
	// MaxAttempts counts the first try too, so 3 means at most 2 retries.
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// JitterFraction spreads each delay into [1-f, 1+f] of its computed
	// value so synchronized clients do not retry in lockstep.
	JitterFraction float64
	// RateLimitDelay is the extra wait after a throttling response that
	// carries no Retry-After hint.
	RateLimitDelay time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.JitterFraction > 1 {
		p.JitterFraction = 1
	}
	if p.RateLimitDelay <= 0 {
		p.RateLimitDelay = 3 * time.Second
	}
	return p
}

// Delay computes the backoff before the retry following attempt (0-based):
// min(maxDelay, baseDelay * multiplier^attempt) scaled by the jitter band.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if capped := float64(p.MaxDelay); d > capped || d < 0 {
		d = capped
	}
	if p.JitterFraction > 0 {
		d *= 1 + p.JitterFraction*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// ParseRetryAfter reads a Retry-After header in either delay-seconds or
// HTTP-date form. The result is capped at an hour; unparseable or
// non-positive values yield zero.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		d := time.Duration(seconds) * time.Second
		if d > time.Hour {
			d = time.Hour
		}
		return d
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 && d <= time.Hour {
			return d
		}
	}
	return 0
}
