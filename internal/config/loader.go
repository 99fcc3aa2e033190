// Package config loads and validates the optional anibridge.yaml file.
// Settings resolve in two layers: defaults and ANIBRIDGE_* environment
// variables are applied first (in cmd/anibridge), then file values override
// wherever the file sets them. Scalar fields are pointers so an absent key
// is distinguishable from an explicit zero.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the top-level anibridge.yaml structure. Duration
// fields carry their unit in the key name (sec, ms, hours) rather than
// using duration strings.
type FileConfig struct {
	LogLevel   *string `yaml:"log_level,omitempty"`
	DBPath     *string `yaml:"db_path,omitempty"`
	AgeKeyPath *string `yaml:"age_key_path,omitempty"`
	AdminAddr  *string `yaml:"admin_addr,omitempty"`

	Cache     CacheConfig     `yaml:"cache,omitempty"`
	AniDB     AniDBConfig     `yaml:"anidb,omitempty"`
	Retry     RetryConfig     `yaml:"retry,omitempty"`
	Breaker   BreakerConfig   `yaml:"breaker,omitempty"`
	Analytics AnalyticsConfig `yaml:"analytics,omitempty"`
}

// CacheConfig tunes the two-tier cache.
type CacheConfig struct {
	MemoryMaxEntries *int `yaml:"memory_max_entries,omitempty"`
	MemoryTTLSec     *int `yaml:"memory_ttl_sec,omitempty"`
	SweepIntervalSec *int `yaml:"sweep_interval_sec,omitempty"`
}

// AniDBConfig holds the AniDB provider settings. Client is the API client
// name registered at anidb.net; without it the provider refuses to start.
type AniDBConfig struct {
	Client            *string `yaml:"client,omitempty"`
	ClientVersion     *int    `yaml:"client_version,omitempty"`
	BaseURL           *string `yaml:"base_url,omitempty"`
	TitlesURL         *string `yaml:"titles_url,omitempty"`
	RequestSpacingMS  *int    `yaml:"request_spacing_ms,omitempty"`
	DetailsTTLHours   *int    `yaml:"details_ttl_hours,omitempty"`
	TitlesWindowHours *int    `yaml:"titles_window_hours,omitempty"`
}

// RetryConfig tunes upstream retry behavior.
type RetryConfig struct {
	MaxAttempts *int `yaml:"max_attempts,omitempty"`
	BaseDelayMS *int `yaml:"base_delay_ms,omitempty"`
	MaxDelaySec *int `yaml:"max_delay_sec,omitempty"`
}

// BreakerConfig tunes the per-operation circuit breakers.
type BreakerConfig struct {
	FailureThreshold   *int `yaml:"failure_threshold,omitempty"`
	RecoveryTimeoutSec *int `yaml:"recovery_timeout_sec,omitempty"`
}

// AnalyticsConfig tunes search-event retention.
type AnalyticsConfig struct {
	RetentionDays *int `yaml:"retention_days,omitempty"`
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
