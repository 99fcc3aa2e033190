// Package analytics records tool invocations as search events and prunes
// them once they age out. Recording never blocks a tool call: events flow
// through a buffered channel to a single writer, and overflow is dropped.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

// Recorder queues search events for asynchronous insertion.
type Recorder struct {
	store   store.SearchEventStore
	queue   chan *store.SearchEvent
	quit    chan struct{}
	done    chan struct{}
	closed  sync.Once
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewRecorder(st store.SearchEventStore, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  st,
		queue:  make(chan *store.SearchEvent, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.run()
	return r
}

// Record enqueues one event. When the writer cannot keep up the event is
// dropped and counted; analytics loss must never slow a tool call down.
func (r *Recorder) Record(e *store.SearchEvent) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("analytics queue full, dropping event",
			"provider", e.Provider, "method", e.Method, "dropped_total", r.dropped.Load())
	}
}

// Dropped returns how many events overflowed the queue.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close stops the writer after draining queued events.
func (r *Recorder) Close() {
	r.closed.Do(func() { close(r.quit) })
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case e := <-r.queue:
			r.insert(e)
		case <-r.quit:
			for {
				select {
				case e := <-r.queue:
					r.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) insert(e *store.SearchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.InsertSearchEvent(ctx, e); err != nil {
		r.logger.Warn("failed to insert search event",
			"provider", e.Provider, "method", e.Method, "error", err)
	}
}
