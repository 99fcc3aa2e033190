package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

func (d *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var v string
	err := d.q.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return v, err
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now().UTC()),
	)
	return err
}
