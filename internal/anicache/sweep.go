package anicache

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired entries from both tiers so that
// rarely-read keys do not linger past their TTL.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on a ticker until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sw.store.Sweep(ctx)
			if err != nil {
				sw.logger.Warn("cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				sw.logger.Debug("cache sweep removed expired entries", "removed", n)
			}
		}
	}
}
