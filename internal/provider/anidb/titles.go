package anidb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/revittco/anibridge/internal/resilience"
	"github.com/revittco/anibridge/internal/store"
)

// metaKeyTitlesRefresh records the last successful dump download, RFC3339.
const metaKeyTitlesRefresh = "anidb:titles_last_refresh"

// minDumpTitles guards against replacing a good index with a truncated or
// bogus download. The real dump carries hundreds of thousands of lines.
const minDumpTitles = 100

// RefreshLimitedError reports an Update attempt inside the download window.
// AniDB bans clients that fetch the dump more than once per 36 hours.
type RefreshLimitedError struct {
	LastRefresh time.Time
	NextAllowed time.Time
}

func (e *RefreshLimitedError) Error() string {
	return fmt.Sprintf("titles dump was refreshed at %s, next download allowed at %s",
		e.LastRefresh.Format(time.RFC3339), e.NextAllowed.Format(time.RFC3339))
}

// TitlesStatus summarizes the local title index for status reporting.
type TitlesStatus struct {
	Titles      int64     `json:"titles"`
	LastRefresh time.Time `json:"last_refresh"`
	NextAllowed time.Time `json:"next_allowed"`
}

// TitlesUpdater downloads the anime-titles dump and swaps it into the local
// index. Downloads are the only bulk traffic this provider generates, so the
// updater enforces AniDB's refresh window itself.
type TitlesUpdater struct {
	cfg       Config
	store     store.Store
	transport resilience.Transport
	logger    *slog.Logger
}

func NewTitlesUpdater(cfg Config, st store.Store, transport resilience.Transport, logger *slog.Logger) *TitlesUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitlesUpdater{cfg: cfg.withDefaults(), store: st, transport: transport, logger: logger}
}

// Update downloads the titles dump and replaces the index in one
// transaction. Returns the number of titles stored. force bypasses the
// download window, not the content validation.
func (u *TitlesUpdater) Update(ctx context.Context, force bool) (int, error) {
	if !force {
		if err := u.checkWindow(ctx); err != nil {
			return 0, err
		}
	}

	u.logger.Info("downloading titles dump", "url", u.cfg.TitlesURL)

	resp, err := u.transport.Send(ctx, resilience.Request{URL: u.cfg.TitlesURL})
	if err != nil {
		return 0, fmt.Errorf("download titles dump: %w", err)
	}
	if err := resilience.StatusError(resp); err != nil {
		return 0, fmt.Errorf("download titles dump: %w", err)
	}

	titles, err := parseTitlesDump(bytes.NewReader(resp.Body))
	if err != nil {
		return 0, err
	}
	if len(titles) < minDumpTitles {
		return 0, fmt.Errorf("titles dump has only %d usable lines, refusing to replace index", len(titles))
	}

	n, err := u.store.ReplaceTitles(ctx, providerName, titles)
	if err != nil {
		return 0, fmt.Errorf("replace title index: %w", err)
	}

	if err := u.store.SetMetadata(ctx, metaKeyTitlesRefresh, time.Now().UTC().Format(time.RFC3339)); err != nil {
		u.logger.Warn("failed to record titles refresh time", "error", err)
	}

	u.logger.Info("title index replaced", "titles", n, "dump_bytes", len(resp.Body))
	return n, nil
}

// Status reports index size and refresh timing.
func (u *TitlesUpdater) Status(ctx context.Context) (*TitlesStatus, error) {
	count, err := u.store.CountTitles(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("count titles: %w", err)
	}
	st := &TitlesStatus{Titles: count}

	val, err := u.store.GetMetadata(ctx, metaKeyTitlesRefresh)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return st, nil
		}
		return nil, fmt.Errorf("read titles refresh time: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339, val); perr == nil {
		st.LastRefresh = t
		st.NextAllowed = t.Add(u.cfg.TitlesWindow)
	}
	return st, nil
}

func (u *TitlesUpdater) checkWindow(ctx context.Context) error {
	val, err := u.store.GetMetadata(ctx, metaKeyTitlesRefresh)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("read titles refresh time: %w", err)
	}

	last, err := time.Parse(time.RFC3339, val)
	if err != nil {
		u.logger.Warn("ignoring unparseable titles refresh time", "value", val)
		return nil
	}

	if next := last.Add(u.cfg.TitlesWindow); time.Now().Before(next) {
		return &RefreshLimitedError{LastRefresh: last, NextAllowed: next}
	}
	return nil
}

// parseTitlesDump reads the gzipped dump. Lines are "aid|kind|lang|title",
// "#" starts a comment; unusable lines are skipped, not fatal.
func parseTitlesDump(r io.Reader) ([]store.AnimeTitle, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("titles dump is not valid gzip: %w", err)
	}
	defer zr.Close()

	var titles []store.AnimeTitle
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		aid, err := strconv.Atoi(parts[0])
		if err != nil || aid <= 0 {
			continue
		}
		kind := titleKind(parts[1])
		if kind == "" {
			continue
		}
		title := strings.TrimSpace(parts[3])
		if title == "" {
			continue
		}
		titles = append(titles, store.AnimeTitle{
			Provider: providerName,
			AnimeID:  aid,
			Title:    title,
			Kind:     kind,
			Language: strings.TrimSpace(parts[2]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read titles dump: %w", err)
	}
	return titles, nil
}

func titleKind(code string) string {
	switch strings.TrimSpace(code) {
	case "1":
		return "primary"
	case "2":
		return "synonym"
	case "3":
		return "short"
	case "4":
		return "official"
	}
	return ""
}
