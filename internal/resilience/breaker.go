package resilience

import (
	"sync"
	"time"
)

// State is a circuit breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive failures open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long an open circuit rejects calls before
	// admitting a trial.
	RecoveryTimeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	return c
}

// Breaker short-circuits one logical upstream operation while it is judged
// unhealthy. All state transitions happen under a single mutex so no two
// callers can act on stale reads, and at most one half-open trial is in
// flight at a time.
type Breaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool

	onStateChange func(State)
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Allow reports whether a call may proceed. Each allowed call must report
// its outcome through exactly one of Success or Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.RecoveryTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

// Success records a successful call. A half-open trial success closes the
// circuit; any success resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.trialInFlight = false
		b.setState(StateClosed)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.openedAt = time.Now()
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		// Failed trial: back to open with a fresh recovery window.
		b.trialInFlight = false
		b.openedAt = time.Now()
		b.setState(StateOpen)
	case StateOpen:
		// Late report from a call admitted before the circuit opened.
	}
}

// State returns the current position without advancing recovery.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onStateChange != nil {
		b.onStateChange(s)
	}
}

// BreakerSet keys breakers per logical operation (provider:method) so one
// failing upstream cannot block unrelated operations.
type BreakerSet struct {
	cfg     BreakerConfig
	metrics *Metrics

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewBreakerSet(cfg BreakerConfig, metrics *Metrics) *BreakerSet {
	return &BreakerSet{
		cfg:      cfg.withDefaults(),
		metrics:  metrics,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for op, creating it closed on first use.
func (s *BreakerSet) Get(op string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[op]
	if !ok {
		b = NewBreaker(s.cfg)
		b.onStateChange = func(st State) { s.metrics.breakerStateChanged(op, st) }
		s.breakers[op] = b
	}
	return b
}

// States snapshots every known breaker's position, for health reporting.
func (s *BreakerSet) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]State, len(s.breakers))
	for op, b := range s.breakers {
		out[op] = b.State()
	}
	return out
}
