package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

func (d *DB) UpsertCredential(ctx context.Context, c *store.ProviderCredential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO provider_credentials (provider, encrypted_data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			encrypted_data = excluded.encrypted_data,
			updated_at = excluded.updated_at`,
		c.Provider, c.EncryptedData, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func (d *DB) GetCredential(ctx context.Context, provider string) (*store.ProviderCredential, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT provider, encrypted_data, created_at, updated_at
		FROM provider_credentials WHERE provider = ?`, provider)

	var c store.ProviderCredential
	var createdAt, updatedAt string
	err := row.Scan(&c.Provider, &c.EncryptedData, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (d *DB) DeleteCredential(ctx context.Context, provider string) error {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE provider = ?`, provider)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) ListCredentialProviders(ctx context.Context) ([]string, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT provider FROM provider_credentials ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
