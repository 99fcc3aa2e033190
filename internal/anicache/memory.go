package anicache

import (
	"container/list"
	"time"
)

// entry is a memory-tier resident. expiresAt here is the residency bound
// (data expiry capped by Config.MemoryTTL); the persisted row carries the
// authoritative data expiry.
type entry struct {
	key            Key
	value          []byte
	createdAt      time.Time
	dataExpiresAt  time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// touchLocked records a read: recency, access metadata.
func (s *Store) touchLocked(el *list.Element, now time.Time) *entry {
	e := el.Value.(*entry)
	e.lastAccessedAt = now
	e.accessCount++
	s.lru.MoveToFront(el)
	return e
}

// insertLocked adds or overwrites a memory entry and evicts down to
// capacity. Overwrite resets all metadata, matching a fresh set.
func (s *Store) insertLocked(e *entry) {
	ks := e.key.String()
	if el, ok := s.items[ks]; ok {
		old := el.Value.(*entry)
		s.memBytes += int64(len(e.value)) - int64(len(old.value))
		el.Value = e
		s.lru.MoveToFront(el)
		return
	}

	el := s.lru.PushFront(e)
	s.items[ks] = el
	s.memBytes += int64(len(e.value))

	for s.lru.Len() > s.maxEntries {
		s.evictOldestLocked()
	}
}

// removeLocked drops an element from the memory index only; the persisted
// row, if any, is untouched.
func (s *Store) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(s.items, e.key.String())
	s.lru.Remove(el)
	s.memBytes -= int64(len(e.value))
}

func (s *Store) evictOldestLocked() {
	el := s.lru.Back()
	if el == nil {
		return
	}
	s.removeLocked(el)
	s.counters.evictions++
}
