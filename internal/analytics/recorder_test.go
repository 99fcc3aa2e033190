package analytics

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/revittco/anibridge/internal/store"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "anibridge.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// captureEventStore records inserts in memory; release, when set, gates each
// insert so tests can hold the writer busy.
type captureEventStore struct {
	mu      sync.Mutex
	events  []*store.SearchEvent
	started chan struct{}
	release chan struct{}
}

func (s *captureEventStore) InsertSearchEvent(ctx context.Context, e *store.SearchEvent) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *captureEventStore) SearchStatsByProvider(ctx context.Context, after, before time.Time) ([]store.ProviderSearchStats, error) {
	return nil, nil
}

func (s *captureEventStore) DeleteSearchEventsBefore(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

func (s *captureEventStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRecorderCloseDrainsQueue(t *testing.T) {
	sink := &captureEventStore{}
	r := NewRecorder(sink, 16, testLogger())

	for i := 0; i < 10; i++ {
		r.Record(&store.SearchEvent{Provider: "anidb", Method: "search_anime"})
	}
	r.Close()

	if got := sink.count(); got != 10 {
		t.Errorf("inserted %d events, want 10", got)
	}
	if r.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", r.Dropped())
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &captureEventStore{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	r := NewRecorder(sink, 1, testLogger())

	// First event reaches the writer and blocks it.
	r.Record(&store.SearchEvent{Provider: "anidb", Method: "a"})
	<-sink.started

	// Second fills the queue; third and fourth overflow.
	r.Record(&store.SearchEvent{Provider: "anidb", Method: "b"})
	r.Record(&store.SearchEvent{Provider: "anidb", Method: "c"})
	r.Record(&store.SearchEvent{Provider: "anidb", Method: "d"})

	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}

	close(sink.release)
	r.Close()

	if got := sink.count(); got != 2 {
		t.Errorf("inserted %d events, want 2", got)
	}
}

func TestRecorderStampsCreatedAt(t *testing.T) {
	sink := &captureEventStore{}
	r := NewRecorder(sink, 4, testLogger())

	before := time.Now().UTC()
	r.Record(&store.SearchEvent{Provider: "anidb", Method: "search_anime"})
	r.Close()

	if got := sink.count(); got != 1 {
		t.Fatalf("inserted %d events, want 1", got)
	}
	sink.mu.Lock()
	created := sink.events[0].CreatedAt
	sink.mu.Unlock()
	if created.Before(before) || created.After(time.Now().UTC()) {
		t.Errorf("CreatedAt = %v, want stamp near %v", created, before)
	}
}

func TestRecorderInsertsIntoStore(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, 16, testLogger())

	r.Record(&store.SearchEvent{
		Provider: "anidb", Method: "search_anime", Query: "bebop",
		ResultCount: 3, CacheHit: true, CacheTier: "memory", DurationMs: 1.5,
	})
	r.Record(&store.SearchEvent{
		Provider: "anidb", Method: "get_anime_details", DurationMs: 240,
		Error: "upstream status 503",
	})
	r.Close()

	stats, err := db.SearchStatsByProvider(context.Background(),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SearchStatsByProvider: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d providers, want 1", len(stats))
	}
	s := stats[0]
	if s.Provider != "anidb" || s.TotalCalls != 2 || s.CacheHits != 1 || s.Errors != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRetentionPrunesAgedEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := &store.SearchEvent{
		Provider: "anidb", Method: "search_anime",
		CreatedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	fresh := &store.SearchEvent{Provider: "anidb", Method: "search_anime"}
	if err := db.InsertSearchEvent(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertSearchEvent(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	rt := NewRetention(db, 30*24*time.Hour, time.Hour, testLogger())
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := rt.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats, err := db.SearchStatsByProvider(ctx,
		time.Now().Add(-90*24*time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SearchStatsByProvider: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalCalls != 1 {
		t.Errorf("stats after retention = %+v, want only the fresh event", stats)
	}
}
