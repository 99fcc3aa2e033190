package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func cmdCache(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: anibridge cache <stats|cleanup|clear> [--pattern=GLOB]")
	}

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

	switch args[0] {
	case "stats":
		usage, err := db.CacheUsage(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("read cache usage: %w", err)
		}
		fmt.Printf("Persisted cache (db: %s)\n", cfg.DBPath)
		fmt.Printf("  Entries:     %d\n", usage.Entries)
		fmt.Printf("  Total bytes: %d\n", usage.TotalBytes)
		fmt.Printf("  Expired:     %d (removed on next cleanup)\n", usage.Expired)

		byMethod, err := db.CacheUsageByMethod(ctx)
		if err != nil {
			return fmt.Errorf("read cache usage by method: %w", err)
		}
		for _, m := range byMethod {
			fmt.Printf("  %s:%s: %d entries, %d bytes\n",
				m.Provider, m.Method, m.Entries, m.TotalBytes)
		}

	case "cleanup":
		n, err := db.DeleteExpiredCacheEntries(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("delete expired entries: %w", err)
		}
		fmt.Printf("Removed %d expired entries\n", n)

	case "clear":
		pattern := "*"
		for _, arg := range args[1:] {
			if strings.HasPrefix(arg, "--pattern=") {
				pattern = strings.TrimPrefix(arg, "--pattern=")
			}
		}

		// Route through the cache store so glob handling matches what the
		// running server does on invalidation.
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		cache := anicache.New(anicache.Config{MaxEntries: 1}, db, quiet)
		n, err := cache.InvalidatePattern(ctx, pattern)
		cache.Close()
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Printf("Removed %d entries matching %q\n", n, pattern)

	default:
		return fmt.Errorf("unknown cache command: %s\nUsage: anibridge cache <stats|cleanup|clear>", args[0])
	}

	return nil
}
