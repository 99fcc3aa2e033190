package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/revittco/anibridge/internal/config"
	"github.com/revittco/anibridge/internal/provider/anidb"
)

// Config holds the resolved application settings. Environment variables and
// built-in defaults are applied first; the optional YAML file overrides
// wherever it sets a value. Zero values on the tuning knobs mean "use the
// component's own default".
type Config struct {
	DBPath     string     // sqlite database file
	AgeKeyPath string     // age identity file; "" auto-generates one next to the DB
	ConfigFile string     // path to anibridge.yaml
	LogLevel   slog.Level // slog level
	AdminAddr  string     // admin HTTP listener; "" disables it

	CacheMaxEntries int
	CacheMemoryTTL  time.Duration
	SweepInterval   time.Duration

	AniDBClient        string // client name registered with AniDB
	AniDBClientVersion int
	AniDBBaseURL       string
	AniDBTitlesURL     string
	RequestSpacing     time.Duration
	DetailsTTL         time.Duration
	TitlesWindow       time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration

	AnalyticsRetention time.Duration
}

// defaultDataPath returns ~/.anibridge/<filename>, falling back to a
// CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".anibridge", filename)
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		DBPath:             envOr("ANIBRIDGE_DB_PATH", defaultDataPath("anibridge.db")),
		AgeKeyPath:         envOr("ANIBRIDGE_AGE_KEY", ""),
		ConfigFile:         envOr("ANIBRIDGE_CONFIG", defaultDataPath("anibridge.yaml")),
		LogLevel:           parseLogLevel(envOr("ANIBRIDGE_LOG_LEVEL", "info")),
		AdminAddr:          envOr("ANIBRIDGE_ADMIN_ADDR", ""),
		AniDBClient:        envOr("ANIBRIDGE_ANIDB_CLIENT", ""),
		AniDBClientVersion: envIntOr("ANIBRIDGE_ANIDB_CLIENTVER", 0),
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		fileCfg, err := config.LoadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFile(cfg, fileCfg)
	}

	return cfg, nil
}

// applyFile overlays values the YAML file actually sets onto cfg.
func applyFile(cfg *Config, f *config.FileConfig) {
	if f.LogLevel != nil {
		cfg.LogLevel = parseLogLevel(*f.LogLevel)
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.AgeKeyPath != nil {
		cfg.AgeKeyPath = *f.AgeKeyPath
	}
	if f.AdminAddr != nil {
		cfg.AdminAddr = *f.AdminAddr
	}

	if f.Cache.MemoryMaxEntries != nil {
		cfg.CacheMaxEntries = *f.Cache.MemoryMaxEntries
	}
	if f.Cache.MemoryTTLSec != nil {
		cfg.CacheMemoryTTL = time.Duration(*f.Cache.MemoryTTLSec) * time.Second
	}
	if f.Cache.SweepIntervalSec != nil {
		cfg.SweepInterval = time.Duration(*f.Cache.SweepIntervalSec) * time.Second
	}

	if f.AniDB.Client != nil {
		cfg.AniDBClient = *f.AniDB.Client
	}
	if f.AniDB.ClientVersion != nil {
		cfg.AniDBClientVersion = *f.AniDB.ClientVersion
	}
	if f.AniDB.BaseURL != nil {
		cfg.AniDBBaseURL = *f.AniDB.BaseURL
	}
	if f.AniDB.TitlesURL != nil {
		cfg.AniDBTitlesURL = *f.AniDB.TitlesURL
	}
	if f.AniDB.RequestSpacingMS != nil {
		cfg.RequestSpacing = time.Duration(*f.AniDB.RequestSpacingMS) * time.Millisecond
	}
	if f.AniDB.DetailsTTLHours != nil {
		cfg.DetailsTTL = time.Duration(*f.AniDB.DetailsTTLHours) * time.Hour
	}
	if f.AniDB.TitlesWindowHours != nil {
		cfg.TitlesWindow = time.Duration(*f.AniDB.TitlesWindowHours) * time.Hour
	}

	if f.Retry.MaxAttempts != nil {
		cfg.RetryMaxAttempts = *f.Retry.MaxAttempts
	}
	if f.Retry.BaseDelayMS != nil {
		cfg.RetryBaseDelay = time.Duration(*f.Retry.BaseDelayMS) * time.Millisecond
	}
	if f.Retry.MaxDelaySec != nil {
		cfg.RetryMaxDelay = time.Duration(*f.Retry.MaxDelaySec) * time.Second
	}

	if f.Breaker.FailureThreshold != nil {
		cfg.BreakerFailureThreshold = *f.Breaker.FailureThreshold
	}
	if f.Breaker.RecoveryTimeoutSec != nil {
		cfg.BreakerRecoveryTimeout = time.Duration(*f.Breaker.RecoveryTimeoutSec) * time.Second
	}

	if f.Analytics.RetentionDays != nil {
		cfg.AnalyticsRetention = time.Duration(*f.Analytics.RetentionDays) * 24 * time.Hour
	}
}

// anidbConfig assembles the provider config; the provider applies its own
// defaults to anything left zero.
func (c *Config) anidbConfig() anidb.Config {
	return anidb.Config{
		ClientName:     c.AniDBClient,
		ClientVersion:  c.AniDBClientVersion,
		BaseURL:        c.AniDBBaseURL,
		TitlesURL:      c.AniDBTitlesURL,
		RequestSpacing: c.RequestSpacing,
		DetailsTTL:     c.DetailsTTL,
		TitlesWindow:   c.TitlesWindow,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
