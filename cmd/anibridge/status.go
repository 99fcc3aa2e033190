package main

import (
	"context"
	"fmt"
	"time"

	"github.com/revittco/anibridge/internal/provider/anidb"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func cmdStatus() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	usage, err := db.CacheUsage(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("read cache usage: %w", err)
	}

	titles, err := anidb.NewTitlesUpdater(cfg.anidbConfig(), db, nil, nil).Status(ctx)
	if err != nil {
		return fmt.Errorf("read title index status: %w", err)
	}

	stats, err := db.SearchStatsByProvider(ctx, time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		return fmt.Errorf("read search stats: %w", err)
	}

	fmt.Printf("anibridge status (db: %s)\n", cfg.DBPath)
	fmt.Printf("  Cached entries:    %d (%d bytes, %d expired)\n",
		usage.Entries, usage.TotalBytes, usage.Expired)
	fmt.Printf("  Title index:       %d titles\n", titles.Titles)
	if !titles.LastRefresh.IsZero() {
		fmt.Printf("  Titles refreshed:  %s (next allowed %s)\n",
			titles.LastRefresh.Format(time.RFC3339), titles.NextAllowed.Format(time.RFC3339))
	} else {
		fmt.Printf("  Titles refreshed:  never (run `anibridge titles update`)\n")
	}
	if len(stats) == 0 {
		fmt.Printf("  Calls (24h):       none\n")
	}
	for _, s := range stats {
		fmt.Printf("  Calls (24h):       %s: %d calls, %d cache hits, %d errors, avg %.1fms\n",
			s.Provider, s.TotalCalls, s.CacheHits, s.Errors, s.AvgDurationMs)
	}

	return nil
}
