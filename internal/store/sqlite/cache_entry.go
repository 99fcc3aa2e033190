package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

func (d *DB) UpsertCacheEntry(ctx context.Context, e *store.CacheEntry) error {
	if e.SizeBytes == 0 {
		e.SizeBytes = int64(len(e.Value))
	}
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO cache_entries
			(cache_key, provider, method, args_hash, args_json, value,
			 size_bytes, created_at, expires_at, last_accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			value = excluded.value,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count`,
		e.Key, e.Provider, e.Method, e.ArgsHash, e.ArgsJSON, e.Value,
		e.SizeBytes, formatTime(e.CreatedAt), formatTime(e.ExpiresAt),
		formatTime(e.LastAccessedAt), e.AccessCount,
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (d *DB) GetCacheEntry(ctx context.Context, key string) (*store.CacheEntry, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT cache_key, provider, method, args_hash, args_json, value,
			size_bytes, created_at, expires_at, last_accessed_at, access_count
		FROM cache_entries WHERE cache_key = ?`, key)

	var e store.CacheEntry
	var createdAt, expiresAt, lastAccessedAt string
	err := row.Scan(&e.Key, &e.Provider, &e.Method, &e.ArgsHash, &e.ArgsJSON,
		&e.Value, &e.SizeBytes, &createdAt, &expiresAt, &lastAccessedAt,
		&e.AccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.ExpiresAt = parseTime(expiresAt)
	e.LastAccessedAt = parseTime(lastAccessedAt)
	return &e, nil
}

func (d *DB) TouchCacheEntry(ctx context.Context, key string, accessedAt time.Time) error {
	res, err := d.q.ExecContext(ctx, `
		UPDATE cache_entries
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE cache_key = ?`,
		formatTime(accessedAt), key,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteCacheEntry(ctx context.Context, key string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteCacheEntriesLike(ctx context.Context, pattern string) (int, error) {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) DeleteExpiredCacheEntries(ctx context.Context, before time.Time) (int, error) {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at < ?`, formatTime(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (d *DB) CacheUsage(ctx context.Context, now time.Time) (*store.CacheUsage, error) {
	var u store.CacheUsage
	err := d.q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(size_bytes), 0),
			COUNT(*) FILTER (WHERE expires_at < ?)
		FROM cache_entries`,
		formatTime(now),
	).Scan(&u.Entries, &u.TotalBytes, &u.Expired)
	if err != nil {
		return nil, fmt.Errorf("cache usage: %w", err)
	}
	return &u, nil
}

func (d *DB) CacheUsageByMethod(ctx context.Context) ([]store.MethodUsage, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT provider, method, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM cache_entries
		GROUP BY provider, method
		ORDER BY provider, method`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MethodUsage
	for rows.Next() {
		var m store.MethodUsage
		if err := rows.Scan(&m.Provider, &m.Method, &m.Entries, &m.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan method usage: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) TopCacheEntries(ctx context.Context, limit int) ([]store.CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.q.QueryContext(ctx, `
		SELECT cache_key, provider, method, args_hash, args_json,
			size_bytes, created_at, expires_at, last_accessed_at, access_count
		FROM cache_entries
		ORDER BY access_count DESC, last_accessed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.CacheEntry
	for rows.Next() {
		e, err := scanCacheEntryMeta(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// scanCacheEntryMeta scans the metadata columns (no value blob).
func scanCacheEntryMeta(row rowScanner) (*store.CacheEntry, error) {
	var e store.CacheEntry
	var createdAt, expiresAt, lastAccessedAt string
	err := row.Scan(&e.Key, &e.Provider, &e.Method, &e.ArgsHash, &e.ArgsJSON,
		&e.SizeBytes, &createdAt, &expiresAt, &lastAccessedAt, &e.AccessCount)
	if err != nil {
		return nil, fmt.Errorf("scan cache entry meta: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.ExpiresAt = parseTime(expiresAt)
	e.LastAccessedAt = parseTime(lastAccessedAt)
	return &e, nil
}
