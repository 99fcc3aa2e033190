// Package anidb implements the AniDB provider. Detail lookups go to the
// AniDB HTTP API (XML); title search runs against a locally indexed copy of
// the daily anime-titles dump, because AniDB has no search endpoint and
// aggressively bans chatty clients.
package anidb

import (
	"fmt"
	"time"
)

const providerName = "anidb"

const (
	defaultBaseURL   = "http://api.anidb.net:9001/httpapi"
	defaultTitlesURL = "https://anidb.net/api/anime-titles.dat.gz"

	// AniDB's client policy: no more than one request every two seconds,
	// and no more than one titles-dump download every 36 hours.
	defaultRequestSpacing = 2 * time.Second
	defaultTitlesWindow   = 36 * time.Hour

	defaultDetailsTTL = 48 * time.Hour

	// protover is the AniDB HTTP API protocol version. There is only one.
	protover = "1"

	maxAnimeID     = 999999
	minQueryLen    = 2
	maxSearchLimit = 100

	defaultSearchLimit = 10
)

// Config holds the AniDB provider settings. ClientName and ClientVersion
// identify a client registered with AniDB and have no usable default.
type Config struct {
	ClientName    string
	ClientVersion int

	BaseURL   string
	TitlesURL string

	// RequestSpacing is the minimum delay between API requests, enforced by
	// the shared pacer.
	RequestSpacing time.Duration

	// DetailsTTL bounds how long a fetched detail record stays valid in
	// both cache tiers.
	DetailsTTL time.Duration

	// TitlesWindow is the minimum interval between titles-dump downloads.
	TitlesWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.TitlesURL == "" {
		c.TitlesURL = defaultTitlesURL
	}
	if c.RequestSpacing <= 0 {
		c.RequestSpacing = defaultRequestSpacing
	}
	if c.DetailsTTL <= 0 {
		c.DetailsTTL = defaultDetailsTTL
	}
	if c.TitlesWindow <= 0 {
		c.TitlesWindow = defaultTitlesWindow
	}
	if c.ClientVersion <= 0 {
		c.ClientVersion = 1
	}
	return c
}

// Validate checks the parts of the config that have no default.
func (c Config) Validate() error {
	if c.ClientName == "" {
		return fmt.Errorf("anidb: client name is required (register one at anidb.net)")
	}
	return nil
}
