package anicache

import (
	"context"
	"errors"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

type opKind int

const (
	opUpsert opKind = iota
	opTouch
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opUpsert:
		return "upsert"
	case opTouch:
		return "touch"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type persistOp struct {
	kind  opKind
	key   string
	at    time.Time
	entry *store.CacheEntry
}

// enqueue hands an operation to the write-behind goroutine. A full queue
// drops the write rather than block a request path; the persisted tier is
// best-effort and the memory tier already holds the fresh state.
func (s *Store) enqueue(op persistOp) {
	if s.persist == nil {
		return
	}
	select {
	case s.queue <- op:
	default:
		s.mu.Lock()
		s.counters.droppedWrites++
		s.mu.Unlock()
		s.logger.Warn("persistence queue full, dropping write",
			"op", op.kind.String(), "key", op.key)
	}
}

// runWriter applies queued operations until quit, then drains what is left.
func (s *Store) runWriter() {
	defer close(s.done)
	for {
		select {
		case op := <-s.queue:
			s.applyOp(op)
		case <-s.quit:
			for {
				select {
				case op := <-s.queue:
					s.applyOp(op)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) applyOp(op persistOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch op.kind {
	case opUpsert:
		err = s.persist.UpsertCacheEntry(ctx, op.entry)
	case opTouch:
		err = s.persist.TouchCacheEntry(ctx, op.key, op.at)
	case opDelete:
		err = s.persist.DeleteCacheEntry(ctx, op.key)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("persistent cache write failed",
			"op", op.kind.String(), "key", op.key, "error", err)
	}
}
