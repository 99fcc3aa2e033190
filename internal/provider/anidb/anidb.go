package anidb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/resilience"
	"github.com/revittco/anibridge/internal/store"
)

// Provider serves AniDB data: details from the HTTP API through the
// resilient fetch façade, search from the locally indexed titles dump.
type Provider struct {
	cfg       Config
	store     store.Store
	group     *resilience.Group
	transport resilience.Transport
	logger    *slog.Logger
}

func New(cfg Config, st store.Store, group *resilience.Group, transport resilience.Transport, logger *slog.Logger) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:       cfg.withDefaults(),
		store:     st,
		group:     group,
		transport: transport,
		logger:    logger,
	}, nil
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{Search: true, Details: true}
}

// SearchAnime runs a ranked lookup over the local title index. No upstream
// call is involved, so neither the pacer nor the breaker applies.
func (p *Provider) SearchAnime(ctx context.Context, query string, limit int) ([]provider.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen {
		return nil, fmt.Errorf("query must be at least %d characters: %w", minQueryLen, provider.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", maxSearchLimit, provider.ErrInvalidArgument)
	}

	matches, err := p.store.SearchTitles(ctx, p.Name(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}

	results := make([]provider.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = provider.SearchResult{
			ID:       m.AnimeID,
			Title:    m.Title,
			Kind:     m.Kind,
			Language: m.Language,
			Score:    m.Rank,
		}
	}
	return results, nil
}

// GetAnimeDetails fetches one anime record. The call runs through the fetch
// façade, so concurrent lookups of the same ID share one API request and
// repeat lookups come from cache.
func (p *Provider) GetAnimeDetails(ctx context.Context, id int) (*provider.AnimeDetails, error) {
	details, _, err := p.GetAnimeDetailsMeta(ctx, id)
	return details, err
}

// GetAnimeDetailsMeta is GetAnimeDetails plus cache metadata for analytics.
func (p *Provider) GetAnimeDetailsMeta(ctx context.Context, id int) (*provider.AnimeDetails, provider.FetchMeta, error) {
	var meta provider.FetchMeta
	if id < 1 || id > maxAnimeID {
		return nil, meta, fmt.Errorf("anime id must be between 1 and %d: %w", maxAnimeID, provider.ErrInvalidArgument)
	}

	key := anicache.NewKey(p.Name(), "anime_details", map[string]any{"aid": id})
	res, err := p.group.FetchWithMeta(ctx, key, p.cfg.DetailsTTL, resilience.FetchFunc(func(ctx context.Context) ([]byte, error) {
		return p.fetchDetails(ctx, id)
	}))
	if err != nil {
		return nil, meta, err
	}
	meta = provider.FetchMeta{CacheHit: res.CacheHit, CacheTier: string(res.CacheTier)}

	var details provider.AnimeDetails
	if err := json.Unmarshal(res.Data, &details); err != nil {
		return nil, meta, fmt.Errorf("decode cached details for anime %d: %w", id, err)
	}
	return &details, meta, nil
}

// fetchDetails performs one API request and returns the parsed record as
// JSON, which is what both cache tiers store. Parsing before caching means
// hits never touch the XML again.
func (p *Provider) fetchDetails(ctx context.Context, id int) ([]byte, error) {
	req := resilience.Request{
		URL:    p.detailsURL(id),
		Header: http.Header{"Accept": []string{"application/xml"}},
	}
	resp, err := p.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, resilience.Fatal(fmt.Errorf("anime %d: %w", id, provider.ErrNotFound))
	}
	if err := resilience.StatusError(resp); err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response for anime %d", id)
	}

	// A 200 body may still be an error document, or even a bare message.
	if apiErr := parseAPIError(body); apiErr != nil {
		return nil, p.classifyError(id, textOr(apiErr.Message, apiErr.Code))
	}
	if body[0] != '<' {
		return nil, p.classifyError(id, string(body))
	}

	details, err := parseAnimeDetails(body)
	if err != nil {
		return nil, fmt.Errorf("anime %d: %w", id, err)
	}

	p.logger.Debug("fetched anime details",
		"aid", id, "title", details.Title, "episodes", details.EpisodeCount)

	return json.Marshal(details)
}

// classifyError sorts an in-band API error message into fatal and retryable
// classes. Bans and unknown-ID responses never get better on retry; anything
// unrecognized is left retryable.
func (p *Provider) classifyError(id int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such anime"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "invalid anime id"):
		return resilience.Fatal(fmt.Errorf("anime %d: %w", id, provider.ErrNotFound))
	case strings.Contains(lower, "banned"):
		return resilience.Fatal(fmt.Errorf("client banned by anidb: %s", msg))
	case strings.Contains(lower, "invalid request"),
		strings.Contains(lower, "invalid client"),
		strings.Contains(lower, "client version"):
		return resilience.Fatal(fmt.Errorf("anidb rejected request: %s", msg))
	default:
		return fmt.Errorf("anidb api error: %s", msg)
	}
}

func (p *Provider) detailsURL(id int) string {
	q := url.Values{}
	q.Set("request", "anime")
	q.Set("client", p.cfg.ClientName)
	q.Set("clientver", strconv.Itoa(p.cfg.ClientVersion))
	q.Set("protover", protover)
	q.Set("aid", strconv.Itoa(id))
	return p.cfg.BaseURL + "?" + q.Encode()
}
