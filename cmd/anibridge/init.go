package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/revittco/anibridge/internal/store/sqlite"
)

func cmdInit() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	_ = db.Close()
	fmt.Printf("Database created: %s\n", cfg.DBPath)

	if _, err := os.Stat(cfg.ConfigFile); os.IsNotExist(err) {
		starter := `# anibridge configuration
# AniDB requires a registered client name: https://anidb.net/software/add
# anidb:
#   client: myclient
#   client_version: 1
#   request_spacing_ms: 2000
#   details_ttl_hours: 48
# cache:
#   memory_max_entries: 1000
#   memory_ttl_sec: 3600
# retry:
#   max_attempts: 3
#   base_delay_ms: 500
# breaker:
#   failure_threshold: 5
#   recovery_timeout_sec: 60
# analytics:
#   retention_days: 30
# admin_addr: "127.0.0.1:8642"
`
		if err := os.WriteFile(cfg.ConfigFile, []byte(starter), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Config file created: %s\n", cfg.ConfigFile)
	} else {
		fmt.Printf("Config file already exists: %s\n", cfg.ConfigFile)
	}

	return nil
}
