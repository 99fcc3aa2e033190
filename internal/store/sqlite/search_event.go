package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/anibridge/internal/store"
)

func (d *DB) InsertSearchEvent(ctx context.Context, e *store.SearchEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO search_events
			(id, provider, method, query, result_count, cache_hit,
			 cache_tier, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Provider, e.Method, e.Query, e.ResultCount, e.CacheHit,
		e.CacheTier, e.DurationMs, e.Error, formatTime(e.CreatedAt),
	)
	return err
}

func (d *DB) SearchStatsByProvider(
	ctx context.Context, after, before time.Time,
) ([]store.ProviderSearchStats, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT
			provider,
			COUNT(*),
			COUNT(*) FILTER (WHERE cache_hit),
			COUNT(*) FILTER (WHERE error != ''),
			COALESCE(AVG(duration_ms), 0)
		FROM search_events
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY provider
		ORDER BY provider`,
		formatTime(after), formatTime(before),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ProviderSearchStats
	for rows.Next() {
		var s store.ProviderSearchStats
		if err := rows.Scan(&s.Provider, &s.TotalCalls, &s.CacheHits,
			&s.Errors, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scan search stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) DeleteSearchEventsBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM search_events WHERE created_at < ?`, formatTime(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
