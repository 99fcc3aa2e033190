package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

// Retention deletes search events older than the configured window.
type Retention struct {
	store    store.SearchEventStore
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewRetention(st store.SearchEventStore, window, interval time.Duration, logger *slog.Logger) *Retention {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{store: st, window: window, interval: interval, logger: logger}
}

// Run prunes once immediately, so an instance that was stopped for a while
// catches up, then keeps pruning on a ticker until ctx is cancelled.
func (rt *Retention) Run(ctx context.Context) error {
	rt.prune(ctx)

	ticker := time.NewTicker(rt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rt.prune(ctx)
		}
	}
}

func (rt *Retention) prune(ctx context.Context) {
	n, err := rt.store.DeleteSearchEventsBefore(ctx, time.Now().Add(-rt.window))
	if err != nil {
		rt.logger.Warn("search event retention failed", "error", err)
		return
	}
	if n > 0 {
		rt.logger.Info("pruned aged search events", "removed", n, "window", rt.window)
	}
}
