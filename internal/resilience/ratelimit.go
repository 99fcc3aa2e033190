package resilience

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum spacing between outbound requests, independently
// per target. Unlike a token bucket it never bursts: consecutive grants are
// always at least minDelay apart.
type Pacer struct {
	minDelay time.Duration

	mu      sync.Mutex
	targets map[string]*paceState
}

type paceState struct {
	mu sync.Mutex
	// last is the most recently granted slot, which may sit in the future
	// while its owner is still sleeping toward it.
	last time.Time
}

func NewPacer(minDelay time.Duration) *Pacer {
	return &Pacer{
		minDelay: minDelay,
		targets:  make(map[string]*paceState),
	}
}

// Wait blocks until minDelay has elapsed since the last granted slot for
// target. The slot is reserved under the target's mutex before sleeping, so
// concurrent callers can never compute their wait from the same stale
// timestamp. Cancellation returns ctx.Err(); the reserved slot is kept, which
// can only widen spacing, never narrow it.
func (p *Pacer) Wait(ctx context.Context, target string) error {
	if p.minDelay <= 0 {
		return ctx.Err()
	}

	st := p.target(target)
	st.mu.Lock()
	now := time.Now()
	grant := st.last.Add(p.minDelay)
	if grant.Before(now) {
		grant = now
	}
	st.last = grant
	st.mu.Unlock()

	wait := time.Until(grant)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) target(name string) *paceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.targets[name]
	if !ok {
		st = &paceState{}
		p.targets[name] = st
	}
	return st
}
