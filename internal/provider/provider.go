// Package provider defines the interface anime data providers implement and
// the boundary types their results are expressed in. Concrete providers live
// in subpackages and are wired into a Registry at startup.
package provider

import (
	"context"
	"errors"
)

// ErrInvalidArgument marks a request the caller built wrong: a too-short
// query, an out-of-range limit or ID. Wrapped so callers can errors.Is it.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound reports that the provider's upstream has no record for the
// requested anime.
var ErrNotFound = errors.New("anime not found")

// Capabilities declares which operations a provider supports. The gateway
// only generates tools for supported operations.
type Capabilities struct {
	Search  bool `json:"search"`
	Details bool `json:"details"`
}

// Provider is a single anime data source.
type Provider interface {
	// Name is the stable identifier used in tool names, cache keys and
	// analytics ("anidb").
	Name() string
	Capabilities() Capabilities
	// SearchAnime looks up anime by title. limit 0 means the provider's
	// default page size.
	SearchAnime(ctx context.Context, query string, limit int) ([]SearchResult, error)
	GetAnimeDetails(ctx context.Context, id int) (*AnimeDetails, error)
}

// FetchMeta reports how a detail lookup was satisfied.
type FetchMeta struct {
	CacheHit  bool
	CacheTier string // "memory", "persistent", or "" when fetched upstream
}

// MetaDetailer is an optional upgrade for providers that report cache
// metadata alongside detail lookups. The gateway uses it to fill analytics
// events; providers without it are recorded as plain fetches.
type MetaDetailer interface {
	GetAnimeDetailsMeta(ctx context.Context, id int) (*AnimeDetails, FetchMeta, error)
}
