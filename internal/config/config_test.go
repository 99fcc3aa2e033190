package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/revittco/anibridge/internal/config"
)

func TestParseFullFile(t *testing.T) {
	data := []byte(`
log_level: debug
db_path: /var/lib/anibridge/anibridge.db
admin_addr: "127.0.0.1:8615"

cache:
  memory_max_entries: 500
  memory_ttl_sec: 1800
  sweep_interval_sec: 300

anidb:
  client: myclient
  client_version: 2
  request_spacing_ms: 4000
  details_ttl_hours: 24
  titles_window_hours: 48

retry:
  max_attempts: 5
  base_delay_ms: 250
  max_delay_sec: 20

breaker:
  failure_threshold: 3
  recovery_timeout_sec: 30

analytics:
  retention_days: 7
`)

	cfg, err := config.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.DBPath == nil || *cfg.DBPath != "/var/lib/anibridge/anibridge.db" {
		t.Fatalf("DBPath = %v, want /var/lib/anibridge/anibridge.db", cfg.DBPath)
	}
	if cfg.AdminAddr == nil || *cfg.AdminAddr != "127.0.0.1:8615" {
		t.Fatalf("AdminAddr = %v, want 127.0.0.1:8615", cfg.AdminAddr)
	}
	if cfg.Cache.MemoryMaxEntries == nil || *cfg.Cache.MemoryMaxEntries != 500 {
		t.Fatalf("MemoryMaxEntries = %v, want 500", cfg.Cache.MemoryMaxEntries)
	}
	if cfg.AniDB.Client == nil || *cfg.AniDB.Client != "myclient" {
		t.Fatalf("AniDB.Client = %v, want myclient", cfg.AniDB.Client)
	}
	if cfg.AniDB.RequestSpacingMS == nil || *cfg.AniDB.RequestSpacingMS != 4000 {
		t.Fatalf("RequestSpacingMS = %v, want 4000", cfg.AniDB.RequestSpacingMS)
	}
	if cfg.Retry.MaxAttempts == nil || *cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("Retry.MaxAttempts = %v, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Breaker.FailureThreshold == nil || *cfg.Breaker.FailureThreshold != 3 {
		t.Fatalf("FailureThreshold = %v, want 3", cfg.Breaker.FailureThreshold)
	}
	if cfg.Analytics.RetentionDays == nil || *cfg.Analytics.RetentionDays != 7 {
		t.Fatalf("RetentionDays = %v, want 7", cfg.Analytics.RetentionDays)
	}
}

func TestParseEmptyFileLeavesFieldsUnset(t *testing.T) {
	cfg, err := config.Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse empty: %v", err)
	}
	if cfg.LogLevel != nil || cfg.DBPath != nil || cfg.AdminAddr != nil {
		t.Fatalf("empty file set top-level fields: %+v", cfg)
	}
	if cfg.Cache.MemoryTTLSec != nil || cfg.AniDB.Client != nil || cfg.Retry.MaxAttempts != nil {
		t.Fatalf("empty file set nested fields: %+v", cfg)
	}
}

func TestParsePartialFile(t *testing.T) {
	cfg, err := config.Parse([]byte("anidb:\n  client: myclient\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AniDB.Client == nil || *cfg.AniDB.Client != "myclient" {
		t.Fatalf("AniDB.Client = %v, want myclient", cfg.AniDB.Client)
	}
	if cfg.AniDB.ClientVersion != nil {
		t.Fatalf("ClientVersion = %v, want unset", cfg.AniDB.ClientVersion)
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	if _, err := config.Parse([]byte("cache: [not a map")); err == nil {
		t.Fatal("Parse on invalid yaml succeeded")
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	data := []byte(`
log_level: loud
cache:
  memory_ttl_sec: -5
anidb:
  client: "  "
  request_spacing_ms: 0
retry:
  max_attempts: -1
`)

	_, err := config.Parse(data)
	if err == nil {
		t.Fatal("Parse on invalid config succeeded")
	}

	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Errors) != 5 {
		t.Fatalf("collected %d errors, want 5: %v", len(verr.Errors), verr.Errors)
	}

	msg := err.Error()
	for _, frag := range []string{
		"log_level",
		"cache.memory_ttl_sec",
		"anidb.client",
		"anidb.request_spacing_ms",
		"retry.max_attempts",
	} {
		if !strings.Contains(msg, frag) {
			t.Fatalf("error %q missing fragment %q", msg, frag)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anibridge.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %v, want warn", cfg.LogLevel)
	}

	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile on missing file succeeded")
	}
}
