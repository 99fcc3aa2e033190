package store

import "time"

// CacheEntry is a persisted cache row. The canonical key is
// "provider:method:argsHash"; ArgsJSON keeps the original arguments for
// debugging and per-method analytics.
type CacheEntry struct {
	Key            string    `json:"key"`
	Provider       string    `json:"provider"`
	Method         string    `json:"method"`
	ArgsHash       string    `json:"args_hash"`
	ArgsJSON       string    `json:"args_json,omitempty"`
	Value          []byte    `json:"-"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
}

// CacheUsage aggregates persisted-tier counters.
type CacheUsage struct {
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	Expired    int64 `json:"expired"` // past expires_at but not yet swept
}

// MethodUsage counts persisted entries per (provider, method).
type MethodUsage struct {
	Provider   string `json:"provider"`
	Method     string `json:"method"`
	Entries    int64  `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
}

// AnimeTitle is one row of a provider's title index.
type AnimeTitle struct {
	Provider string `json:"provider"`
	AnimeID  int    `json:"anime_id"`
	Title    string `json:"title"`
	Kind     string `json:"kind"` // "primary", "synonym", "short", "official"
	Language string `json:"language"`
}

// TitleMatch is a ranked title-search result. Rank 3 is an exact match,
// 2 a prefix match, 1 a substring match.
type TitleMatch struct {
	AnimeID  int    `json:"anime_id"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	Rank     int    `json:"rank"`
}

// SearchEvent records one tool invocation for analytics.
type SearchEvent struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Method      string    `json:"method"`
	Query       string    `json:"query,omitempty"`
	ResultCount int       `json:"result_count"`
	CacheHit    bool      `json:"cache_hit"`
	CacheTier   string    `json:"cache_tier,omitempty"` // "memory", "persistent", or "" on miss
	DurationMs  float64   `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProviderSearchStats aggregates search events for one provider.
type ProviderSearchStats struct {
	Provider      string  `json:"provider"`
	TotalCalls    int64   `json:"total_calls"`
	CacheHits     int64   `json:"cache_hits"`
	Errors        int64   `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ProviderCredential holds age-encrypted credential material for a provider.
type ProviderCredential struct {
	Provider      string    `json:"provider"`
	EncryptedData []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
