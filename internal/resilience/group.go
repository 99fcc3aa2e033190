package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/revittco/anibridge/internal/anicache"
)

// Fetcher produces a value for a cache key on miss.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetchFunc adapts a plain function to Fetcher.
type FetchFunc func(ctx context.Context) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// FetchOption adjusts a single Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	fallback    []byte
	hasFallback bool
}

// WithFallback serves value when the fetch fails or the circuit is open,
// instead of surfacing the error. Fallback values are never written to the
// cache.
func WithFallback(value []byte) FetchOption {
	return func(o *fetchOptions) {
		o.fallback = value
		o.hasFallback = true
	}
}

// GroupConfig tunes the fetch façade.
type GroupConfig struct {
	// FetchTimeout bounds one coalesced fetch including all retries, so
	// waiters are never stranded behind a hung fetcher.
	FetchTimeout time.Duration
}

func (c GroupConfig) withDefaults() GroupConfig {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 2 * time.Minute
	}
	return c
}

// Group is the resilient fetch façade providers call: cache first, then one
// coalesced, circuit-breaker-gated, rate-paced, retrying fetch per key.
type Group struct {
	cfg      GroupConfig
	cache    *anicache.Store
	client   *Client
	breakers *BreakerSet
	metrics  *Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is one in-flight fetch shared by every concurrent caller of its
// key. Result fields are written once, before done is closed.
type flight struct {
	done    chan struct{}
	value   []byte
	err     error
	waiters int
}

func NewGroup(cfg GroupConfig, cache *anicache.Store, client *Client, breakers *BreakerSet, metrics *Metrics, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{
		cfg:      cfg.withDefaults(),
		cache:    cache,
		client:   client,
		breakers: breakers,
		metrics:  metrics,
		logger:   logger,
		inflight: make(map[string]*flight),
	}
}

// FetchResult carries a fetched value plus how it was satisfied.
type FetchResult struct {
	Data     []byte
	CacheHit bool
	// CacheTier names the tier that served a hit, empty on a miss.
	CacheTier anicache.Tier
}

// Fetch returns the cached value for key or performs one upstream fetch,
// storing the result under ttl. Concurrent callers of the same cold key
// share a single fetch; failures are delivered to every waiter and never
// populate the cache.
func (g *Group) Fetch(ctx context.Context, key anicache.Key, ttl time.Duration, fetcher Fetcher, opts ...FetchOption) ([]byte, error) {
	res, err := g.FetchWithMeta(ctx, key, ttl, fetcher, opts...)
	return res.Data, err
}

// FetchWithMeta is Fetch plus cache metadata, for callers that record
// per-call analytics.
func (g *Group) FetchWithMeta(ctx context.Context, key anicache.Key, ttl time.Duration, fetcher Fetcher, opts ...FetchOption) (FetchResult, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", key, anicache.ErrInvalidTTL)
	}

	start := time.Now()
	if val, tier, ok := g.cache.Get(ctx, key); ok {
		g.metrics.fetchObserved(key.Provider, key.Method, "hit_"+string(tier), time.Since(start))
		return FetchResult{Data: val, CacheHit: true, CacheTier: tier}, nil
	}

	ks := key.String()
	g.mu.Lock()
	f, joined := g.inflight[ks]
	if joined {
		f.waiters++
	} else {
		f = &flight{done: make(chan struct{}), waiters: 1}
		g.inflight[ks] = f
		go g.run(key, ttl, fetcher, f)
	}
	g.mu.Unlock()
	if joined {
		g.metrics.coalescedWait(key.Provider, key.Method)
	}

	val, err := g.await(ctx, f)
	if err == nil {
		g.metrics.fetchObserved(key.Provider, key.Method, "fetched", time.Since(start))
		return FetchResult{Data: val}, nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// The caller abandoned the wait; the fetch itself carries on for
		// the remaining waiters.
		return FetchResult{}, err
	}
	if o.hasFallback {
		g.logger.Debug("serving fallback value", "key", ks, "error", err)
		g.metrics.fetchObserved(key.Provider, key.Method, "fallback", time.Since(start))
		return FetchResult{Data: append([]byte(nil), o.fallback...)}, nil
	}
	g.metrics.fetchObserved(key.Provider, key.Method, "failed", time.Since(start))
	return FetchResult{}, err
}

// run executes the upstream fetch on behalf of every waiter. It never
// inherits a caller's context: an abandoned caller must not cancel work
// other waiters depend on.
func (g *Group) run(key anicache.Key, ttl time.Duration, fetcher Fetcher, f *flight) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FetchTimeout)
	defer cancel()

	val, err := g.fetchOnce(ctx, key, fetcher)
	if err == nil {
		if serr := g.cache.Set(key, val, ttl); serr != nil {
			g.logger.Warn("failed to cache fetched value", "key", key.String(), "error", serr)
		}
	}

	g.mu.Lock()
	delete(g.inflight, key.String())
	g.mu.Unlock()

	f.value, f.err = val, err
	close(f.done)
}

// fetchOnce is the breaker-gated retrying call. The breaker counts logical
// operations, not individual attempts: one Do call reports one outcome.
func (g *Group) fetchOnce(ctx context.Context, key anicache.Key, fetcher Fetcher) ([]byte, error) {
	op := key.Provider + ":" + key.Method
	breaker := g.breakers.Get(op)
	if err := breaker.Allow(); err != nil {
		g.metrics.breakerRejected(op)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	val, err := g.client.Do(ctx, op, fetcher.Fetch)
	if err != nil {
		breaker.Failure()
		return nil, err
	}
	breaker.Success()
	return val, nil
}

func (g *Group) await(ctx context.Context, f *flight) ([]byte, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		g.mu.Lock()
		f.waiters--
		g.mu.Unlock()
		return nil, ctx.Err()
	}

	g.mu.Lock()
	f.waiters--
	g.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(nil), f.value...), nil
}

// Invalidate removes key from both cache tiers.
func (g *Group) Invalidate(key anicache.Key) {
	g.cache.Invalidate(key)
}

// CacheStats reports the underlying cache's performance counters.
func (g *Group) CacheStats(ctx context.Context) (anicache.Stats, error) {
	return g.cache.Stats(ctx)
}

// BreakerStates snapshots every breaker this group has touched.
func (g *Group) BreakerStates() map[string]State {
	return g.breakers.States()
}

// InFlight returns how many keys are currently being fetched.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
