package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/resilience"
	"github.com/revittco/anibridge/internal/store"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

type apiStubProvider struct {
	name string
}

func (s *apiStubProvider) Name() string { return s.name }
func (s *apiStubProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{Search: true, Details: true}
}
func (s *apiStubProvider) SearchAnime(context.Context, string, int) ([]provider.SearchResult, error) {
	return nil, nil
}
func (s *apiStubProvider) GetAnimeDetails(context.Context, int) (*provider.AnimeDetails, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, store.Store, *anicache.Store) {
	t.Helper()

	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := anicache.New(anicache.Config{MaxEntries: 16}, db, logger)
	t.Cleanup(cache.Close)

	reg := provider.NewRegistry()
	if err := reg.Register(&apiStubProvider{name: "anidb"}); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	promReg := prometheus.NewRegistry()
	resilience.NewMetrics(promReg)

	router := NewRouter(RouterDeps{
		Cache:    cache,
		Store:    db,
		Registry: reg,
		Metrics:  promReg,
	})
	return router, db, cache
}

func getJSON(t *testing.T, router http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "http://localhost"+path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if out != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var resp healthResponse
	rr := getJSON(t, router, "/api/health", &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp.Status != "ok" || resp.Database != "ok" {
		t.Errorf("health = %+v", resp)
	}
	if len(resp.Providers) != 1 || resp.Providers[0] != "anidb" {
		t.Errorf("providers = %v", resp.Providers)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	router, _, cache := newTestRouter(t)

	key := anicache.NewKey("anidb", "anime_details", map[string]any{"aid": 1})
	if err := cache.Set(key, []byte(`{"aid":1}`), time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if _, _, ok := cache.Get(context.Background(), key); !ok {
		t.Fatal("seeded entry not readable")
	}

	var resp cacheStatsResponse
	rr := getJSON(t, router, "/api/cache/stats", &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp.Memory.Entries != 1 || resp.Memory.Hits != 1 {
		t.Errorf("memory stats = %+v", resp.Memory)
	}
}

func TestCacheTopEndpoint(t *testing.T) {
	router, db, _ := newTestRouter(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, count := range []int64{5, 2} {
		key := anicache.NewKey("anidb", "anime_details", map[string]any{"aid": i + 1})
		entry := &store.CacheEntry{
			Key:            key.String(),
			Provider:       "anidb",
			Method:         "anime_details",
			ArgsHash:       key.ArgsHash,
			Value:          []byte("{}"),
			SizeBytes:      2,
			CreatedAt:      now,
			ExpiresAt:      now.Add(time.Hour),
			LastAccessedAt: now,
			AccessCount:    count,
		}
		if err := db.UpsertCacheEntry(ctx, entry); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	var resp struct {
		Data  []store.CacheEntry `json:"data"`
		Limit int                `json:"limit"`
	}
	rr := getJSON(t, router, "/api/cache/top?limit=1", &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp.Limit != 1 || len(resp.Data) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Data[0].AccessCount != 5 {
		t.Errorf("top entry access count = %d, want 5", resp.Data[0].AccessCount)
	}
}

func TestSearchStatsEndpoint(t *testing.T) {
	router, db, _ := newTestRouter(t)
	ctx := context.Background()

	events := []store.SearchEvent{
		{Provider: "anidb", Method: "search_anime", Query: "bebop", ResultCount: 2, DurationMs: 12, CreatedAt: time.Now().UTC()},
		{Provider: "anidb", Method: "get_anime_details", Query: "23", CacheHit: true, CacheTier: "memory", DurationMs: 1, CreatedAt: time.Now().UTC()},
		{Provider: "anidb", Method: "search_anime", Query: "x", Error: "upstream busy", DurationMs: 40, CreatedAt: time.Now().UTC()},
	}
	for i := range events {
		if err := db.InsertSearchEvent(ctx, &events[i]); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	var resp struct {
		Data []store.ProviderSearchStats `json:"data"`
	}
	rr := getJSON(t, router, "/api/search/stats", &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(resp.Data) != 1 {
		t.Fatalf("providers = %+v", resp.Data)
	}
	got := resp.Data[0]
	if got.Provider != "anidb" || got.TotalCalls != 3 || got.CacheHits != 1 || got.Errors != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := getJSON(t, router, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := getJSON(t, router, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
