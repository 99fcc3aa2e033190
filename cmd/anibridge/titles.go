package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/revittco/anibridge/internal/provider/anidb"
	"github.com/revittco/anibridge/internal/resilience"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func cmdTitles(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: anibridge titles <update [--force]|search <query>>")
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
	case "update":
		force := false
		for _, arg := range args[1:] {
			if arg == "--force" {
				force = true
			}
		}

		transport := resilience.NewHTTPTransport(2*time.Minute, userAgent)
		updater := anidb.NewTitlesUpdater(cfg.anidbConfig(), db, transport, nil)

		n, err := updater.Update(ctx, force)
		if err != nil {
			var limited *anidb.RefreshLimitedError
			if errors.As(err, &limited) {
				fmt.Printf("Title index is fresh; next download allowed at %s (use --force to override)\n",
					limited.NextAllowed.Format(time.RFC3339))
				return nil
			}
			return fmt.Errorf("update titles: %w", err)
		}
		fmt.Printf("Title index updated: %d titles\n", n)

	case "search":
		if len(args) < 2 {
			return fmt.Errorf("usage: anibridge titles search <query>")
		}
		query := strings.Join(args[1:], " ")

		matches, err := db.SearchTitles(ctx, "anidb", query, 20)
		if err != nil {
			return fmt.Errorf("search titles: %w", err)
		}
		if len(matches) == 0 {
			fmt.Println("No matches")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%7d  %-9s %-8s %s\n", m.AnimeID, m.Kind, m.Language, m.Title)
		}

	default:
		return fmt.Errorf("unknown titles command: %s\nUsage: anibridge titles <update|search>", args[0])
	}

	return nil
}
