package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/revittco/anibridge/internal/store"
)

// ReplaceTitles swaps out a provider's whole title index inside one
// transaction so searches never observe a half-loaded index.
func (d *DB) ReplaceTitles(ctx context.Context, provider string, titles []store.AnimeTitle) (int, error) {
	var inserted int
	err := d.withTx(ctx, func(q queryable) error {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM anime_titles WHERE provider = ?`, provider); err != nil {
			return fmt.Errorf("clear titles: %w", err)
		}

		stmt := `INSERT OR IGNORE INTO anime_titles
			(provider, anime_id, title, title_kind, language)
			VALUES (?, ?, ?, ?, ?)`
		for _, t := range titles {
			res, err := q.ExecContext(ctx, stmt,
				provider, t.AnimeID, t.Title, t.Kind, t.Language)
			if err != nil {
				return fmt.Errorf("insert title aid=%d: %w", t.AnimeID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// SearchTitles ranks matches: exact (3) over prefix (2) over substring (1).
// Each anime appears once, at its best-ranked title.
func (d *DB) SearchTitles(ctx context.Context, provider, query string, limit int) ([]store.TitleMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	esc := escapeLike(q)

	rows, err := d.q.QueryContext(ctx, `
		SELECT anime_id, title, title_kind, language, MAX(match_rank) AS best FROM (
			SELECT anime_id, title, title_kind, language,
				CASE
					WHEN lower(title) = ? THEN 3
					WHEN lower(title) LIKE ? ESCAPE '\' THEN 2
					ELSE 1
				END AS match_rank
			FROM anime_titles
			WHERE provider = ? AND lower(title) LIKE ? ESCAPE '\'
		)
		GROUP BY anime_id
		ORDER BY best DESC, length(title) ASC, anime_id ASC
		LIMIT ?`,
		q, esc+"%", provider, "%"+esc+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	defer rows.Close()

	var out []store.TitleMatch
	for rows.Next() {
		var m store.TitleMatch
		if err := rows.Scan(&m.AnimeID, &m.Title, &m.Kind, &m.Language, &m.Rank); err != nil {
			return nil, fmt.Errorf("scan title match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) CountTitles(ctx context.Context, provider string) (int64, error) {
	var n int64
	err := d.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anime_titles WHERE provider = ?`, provider,
	).Scan(&n)
	return n, err
}

// escapeLike escapes LIKE metacharacters so user queries match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
