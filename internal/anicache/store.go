package anicache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

// ErrInvalidTTL rejects sets with a non-positive TTL.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Config tunes the two-tier store.
type Config struct {
	// MaxEntries bounds the memory tier; the least-recently-accessed
	// entry is evicted first.
	MaxEntries int
	// MemoryTTL caps how long an entry stays resident in memory. The
	// data's own TTL (given per Set) still governs both tiers; an entry
	// whose residency lapsed is re-promoted from the persisted tier on
	// the next read.
	MemoryTTL time.Duration
	// QueueSize is the write-behind queue depth.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1000
	}
	if c.MemoryTTL <= 0 {
		c.MemoryTTL = time.Hour
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Store is a two-tier cache: an LRU+TTL memory index over an optional
// persisted SQLite tier. Writes go through to the persisted tier
// asynchronously; reads promote persisted entries back into memory.
//
// The single mutex guards only the memory index and counters. Persisted-tier
// I/O always happens off the lock: reads on the caller's goroutine after
// unlocking, writes on the write-behind goroutine.
type Store struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List
	maxEntries int
	memoryTTL  time.Duration
	memBytes   int64
	counters   counters

	persist store.CacheEntryStore // nil = memory-only
	queue   chan persistOp
	quit    chan struct{}
	done    chan struct{}
	closed  sync.Once

	logger *slog.Logger
}

// New creates a Store. persist may be nil, in which case the store runs
// memory-only (degraded mode; also how most tests run).
func New(cfg Config, persist store.CacheEntryStore, logger *slog.Logger) *Store {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: cfg.MaxEntries,
		memoryTTL:  cfg.MemoryTTL,
		persist:    persist,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
	if persist != nil {
		s.queue = make(chan persistOp, cfg.QueueSize)
		go s.runWriter()
	}
	return s
}

// Get returns the cached value and the tier it was served from. Expired
// entries are treated as misses and removed lazily. Persisted-tier read
// errors degrade to a miss.
func (s *Store) Get(ctx context.Context, key Key) ([]byte, Tier, bool) {
	ks := key.String()
	start := time.Now()

	s.mu.Lock()
	if el, ok := s.items[ks]; ok {
		e := el.Value.(*entry)
		if start.After(e.dataExpiresAt) {
			// Dead in both tiers: the persisted row carries the same
			// data expiry.
			s.removeLocked(el)
			s.counters.expirations++
			s.counters.misses++
			s.mu.Unlock()
			s.enqueue(persistOp{kind: opDelete, key: ks})
			return nil, "", false
		}
		if !start.After(e.expiresAt) {
			s.touchLocked(el, start)
			val := append([]byte(nil), e.value...)
			s.counters.memHits++
			s.counters.memLatencyNs += time.Since(start).Nanoseconds()
			s.mu.Unlock()
			return val, TierMemory, true
		}
		// Residency lapsed; the persisted tier may still be fresh.
		s.removeLocked(el)
	}
	s.mu.Unlock()

	if s.persist == nil {
		s.recordMiss()
		return nil, "", false
	}

	pe, err := s.persist.GetCacheEntry(ctx, ks)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("persistent cache read failed", "key", ks, "error", err)
		}
		s.recordMiss()
		return nil, "", false
	}
	if !start.Before(pe.ExpiresAt) {
		s.enqueue(persistOp{kind: opDelete, key: ks})
		s.mu.Lock()
		s.counters.expirations++
		s.counters.misses++
		s.mu.Unlock()
		return nil, "", false
	}

	// Fresh persisted entry: count the read in SQL (atomic increment, no
	// lost updates) and promote into memory with a fresh residency bound.
	s.enqueue(persistOp{kind: opTouch, key: ks, at: start})
	e := &entry{
		key: Key{
			Provider: pe.Provider,
			Method:   pe.Method,
			ArgsHash: pe.ArgsHash,
			ArgsJSON: pe.ArgsJSON,
		},
		value:          pe.Value,
		createdAt:      pe.CreatedAt,
		dataExpiresAt:  pe.ExpiresAt,
		expiresAt:      s.residencyBound(start, pe.ExpiresAt),
		lastAccessedAt: start,
		accessCount:    pe.AccessCount + 1,
	}
	s.mu.Lock()
	s.insertLocked(e)
	s.counters.persistHits++
	s.counters.persistLatency += time.Since(start).Nanoseconds()
	s.mu.Unlock()
	return append([]byte(nil), pe.Value...), TierPersistent, true
}

// Set stores value under key with the given TTL in both tiers. An existing
// entry is overwritten with fresh metadata, not merged.
func (s *Store) Set(key Key, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTTL, ttl)
	}

	now := time.Now()
	val := append([]byte(nil), value...)
	e := &entry{
		key:            key,
		value:          val,
		createdAt:      now,
		dataExpiresAt:  now.Add(ttl),
		expiresAt:      s.residencyBound(now, now.Add(ttl)),
		lastAccessedAt: now,
	}

	s.mu.Lock()
	s.insertLocked(e)
	s.mu.Unlock()

	s.enqueue(persistOp{kind: opUpsert, key: key.String(), entry: &store.CacheEntry{
		Key:            key.String(),
		Provider:       key.Provider,
		Method:         key.Method,
		ArgsHash:       key.ArgsHash,
		ArgsJSON:       key.ArgsJSON,
		Value:          val,
		SizeBytes:      int64(len(val)),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}})
	return nil
}

// Invalidate removes key from both tiers.
func (s *Store) Invalidate(key Key) {
	ks := key.String()
	s.mu.Lock()
	if el, ok := s.items[ks]; ok {
		s.removeLocked(el)
	}
	s.mu.Unlock()
	s.enqueue(persistOp{kind: opDelete, key: ks})
}

// InvalidatePattern removes every key matching pattern ('*' wildcards) from
// both tiers and returns how many persisted rows were removed (memory
// removals when running memory-only).
func (s *Store) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var memRemoved int
	s.mu.Lock()
	for ks, el := range s.items {
		if Match(pattern, ks) {
			s.removeLocked(el)
			memRemoved++
		}
	}
	s.mu.Unlock()

	if s.persist == nil {
		return memRemoved, nil
	}
	return s.persist.DeleteCacheEntriesLike(ctx, LikePattern(pattern))
}

// Sweep removes expired entries from both tiers and returns the number
// removed. Residency-lapsed memory entries are also dropped; they remain
// readable from the persisted tier.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := time.Now()
	var removed int

	s.mu.Lock()
	for _, el := range s.items {
		e := el.Value.(*entry)
		if now.After(e.dataExpiresAt) {
			s.removeLocked(el)
			s.counters.expirations++
			removed++
		} else if now.After(e.expiresAt) {
			s.removeLocked(el)
		}
	}
	s.mu.Unlock()

	if s.persist == nil {
		return removed, nil
	}
	n, err := s.persist.DeleteExpiredCacheEntries(ctx, now)
	if err != nil {
		return removed, fmt.Errorf("sweep persistent tier: %w", err)
	}
	return removed + n, nil
}

// Stats snapshots cache performance. The persisted-tier entry and byte
// counts come from SQL and are skipped (left zero) when memory-only.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	c := s.counters
	memEntries := int64(len(s.items))
	memBytes := s.memBytes
	s.mu.Unlock()

	st := Stats{
		Memory: TierStats{
			Entries:    memEntries,
			Hits:       c.memHits,
			TotalBytes: memBytes,
		},
		Persistent: TierStats{
			Hits: c.persistHits,
		},
		Misses:        c.misses,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		DroppedWrites: c.droppedWrites,
	}
	if c.memHits > 0 {
		st.Memory.AvgGetLatency = time.Duration(c.memLatencyNs / c.memHits)
	}
	if c.persistHits > 0 {
		st.Persistent.AvgGetLatency = time.Duration(c.persistLatency / c.persistHits)
	}
	if total := c.memHits + c.persistHits + c.misses; total > 0 {
		st.HitRate = float64(c.memHits+c.persistHits) / float64(total)
	}

	if s.persist != nil {
		u, err := s.persist.CacheUsage(ctx, time.Now())
		if err != nil {
			return st, fmt.Errorf("persistent cache usage: %w", err)
		}
		st.Persistent.Entries = u.Entries
		st.Persistent.TotalBytes = u.TotalBytes
	}
	return st, nil
}

// Len returns the number of memory-resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close drains the write-behind queue so pending persistence reaches the
// database before shutdown.
func (s *Store) Close() {
	if s.persist == nil {
		return
	}
	s.closed.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Store) recordMiss() {
	s.mu.Lock()
	s.counters.misses++
	s.mu.Unlock()
}

// residencyBound caps a memory residency at MemoryTTL without ever
// outliving the data expiry.
func (s *Store) residencyBound(now, dataExpiry time.Time) time.Time {
	bound := now.Add(s.memoryTTL)
	if bound.After(dataExpiry) {
		return dataExpiry
	}
	return bound
}
