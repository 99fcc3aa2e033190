package store

import (
	"context"
	"time"
)

// Store is the composite interface for all data access.
type Store interface {
	CacheEntryStore
	TitleStore
	SearchEventStore
	MetadataStore
	CredentialStore
	Tx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// CacheEntryStore manages the persisted cache tier.
type CacheEntryStore interface {
	UpsertCacheEntry(ctx context.Context, e *CacheEntry) error
	GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error)
	// TouchCacheEntry bumps access_count by one and sets last_accessed_at.
	// The increment happens in SQL so concurrent touches never lose updates.
	TouchCacheEntry(ctx context.Context, key string, accessedAt time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	// DeleteCacheEntriesLike removes entries whose key matches a SQL LIKE
	// pattern ("%" clears everything). Returns the number removed.
	DeleteCacheEntriesLike(ctx context.Context, pattern string) (int, error)
	DeleteExpiredCacheEntries(ctx context.Context, before time.Time) (int, error)
	CacheUsage(ctx context.Context, now time.Time) (*CacheUsage, error)
	CacheUsageByMethod(ctx context.Context) ([]MethodUsage, error)
	// TopCacheEntries lists the most-accessed entries, values omitted.
	TopCacheEntries(ctx context.Context, limit int) ([]CacheEntry, error)
}

// TitleStore manages per-provider anime title indexes.
type TitleStore interface {
	// ReplaceTitles swaps a provider's whole title index in one transaction.
	ReplaceTitles(ctx context.Context, provider string, titles []AnimeTitle) (int, error)
	SearchTitles(ctx context.Context, provider, query string, limit int) ([]TitleMatch, error)
	CountTitles(ctx context.Context, provider string) (int64, error)
}

// SearchEventStore manages search analytics events.
type SearchEventStore interface {
	InsertSearchEvent(ctx context.Context, e *SearchEvent) error
	SearchStatsByProvider(ctx context.Context, after, before time.Time) ([]ProviderSearchStats, error)
	DeleteSearchEventsBefore(ctx context.Context, before time.Time) (int, error)
}

// MetadataStore is a key/value table for bookkeeping (titles refresh
// timestamps, schema notes).
type MetadataStore interface {
	GetMetadata(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error
}

// CredentialStore manages encrypted provider credentials.
type CredentialStore interface {
	UpsertCredential(ctx context.Context, c *ProviderCredential) error
	GetCredential(ctx context.Context, provider string) (*ProviderCredential, error)
	DeleteCredential(ctx context.Context, provider string) error
	ListCredentialProviders(ctx context.Context) ([]string, error)
}
