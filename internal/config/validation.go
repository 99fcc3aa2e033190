package config

import (
	"fmt"
	"strings"
)

// ValidationError holds all validation failures for a config file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// validate checks the parsed config for correctness. All failures are
// collected so a broken file is reported in one pass.
func validate(cfg *FileConfig) error {
	var errs []string

	if cfg.LogLevel != nil {
		if err := validateLogLevel(*cfg.LogLevel); err != nil {
			errs = append(errs, err.Error())
		}
	}

	errs = appendPositive(errs, "cache.memory_max_entries", cfg.Cache.MemoryMaxEntries)
	errs = appendPositive(errs, "cache.memory_ttl_sec", cfg.Cache.MemoryTTLSec)
	errs = appendPositive(errs, "cache.sweep_interval_sec", cfg.Cache.SweepIntervalSec)

	if cfg.AniDB.Client != nil && strings.TrimSpace(*cfg.AniDB.Client) == "" {
		errs = append(errs, "anidb.client: must not be blank when set")
	}
	errs = appendPositive(errs, "anidb.client_version", cfg.AniDB.ClientVersion)
	errs = appendPositive(errs, "anidb.request_spacing_ms", cfg.AniDB.RequestSpacingMS)
	errs = appendPositive(errs, "anidb.details_ttl_hours", cfg.AniDB.DetailsTTLHours)
	errs = appendPositive(errs, "anidb.titles_window_hours", cfg.AniDB.TitlesWindowHours)

	errs = appendPositive(errs, "retry.max_attempts", cfg.Retry.MaxAttempts)
	errs = appendPositive(errs, "retry.base_delay_ms", cfg.Retry.BaseDelayMS)
	errs = appendPositive(errs, "retry.max_delay_sec", cfg.Retry.MaxDelaySec)

	errs = appendPositive(errs, "breaker.failure_threshold", cfg.Breaker.FailureThreshold)
	errs = appendPositive(errs, "breaker.recovery_timeout_sec", cfg.Breaker.RecoveryTimeoutSec)

	errs = appendPositive(errs, "analytics.retention_days", cfg.Analytics.RetentionDays)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level: invalid level %q (must be debug, info, warn, or error)", level)
	}
}

// appendPositive records an error when a set integer field is not positive.
func appendPositive(errs []string, field string, v *int) []string {
	if v != nil && *v <= 0 {
		errs = append(errs, fmt.Sprintf("%s: must be positive, got %d", field, *v))
	}
	return errs
}
