package anicache

import "time"

// Tier names a cache tier.
type Tier string

const (
	TierMemory     Tier = "memory"
	TierPersistent Tier = "persistent"
)

// TierStats holds per-tier counters.
type TierStats struct {
	Entries       int64         `json:"entries"`
	Hits          int64         `json:"hits"`
	TotalBytes    int64         `json:"total_bytes"`
	AvgGetLatency time.Duration `json:"avg_get_latency_ns"`
}

// Stats is a snapshot of cache performance.
type Stats struct {
	Memory      TierStats `json:"memory"`
	Persistent  TierStats `json:"persistent"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	Evictions   int64     `json:"evictions"`
	Expirations int64     `json:"expirations"`
	// DroppedWrites counts write-behind operations discarded because the
	// persistence queue was full.
	DroppedWrites int64 `json:"dropped_writes"`
}

// counters is the lock-guarded mutable half of Stats.
type counters struct {
	memHits        int64
	persistHits    int64
	misses         int64
	evictions      int64
	expirations    int64
	droppedWrites  int64
	memLatencyNs   int64
	persistLatency int64
}
