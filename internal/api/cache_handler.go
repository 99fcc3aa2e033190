package api

import (
	"net/http"
	"strconv"

	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/store"
)

type cacheHandler struct {
	cache *anicache.Store
	store store.CacheEntryStore
}

type cacheStatsResponse struct {
	anicache.Stats
	ByMethod []store.MethodUsage `json:"by_method"`
}

func (h *cacheHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}

	byMethod, err := h.store.CacheUsageByMethod(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read cache usage")
		return
	}
	if byMethod == nil {
		byMethod = []store.MethodUsage{}
	}

	writeJSON(w, http.StatusOK, cacheStatsResponse{Stats: stats, ByMethod: byMethod})
}

func (h *cacheHandler) top(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.store.TopCacheEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query cache entries")
		return
	}
	if entries == nil {
		entries = []store.CacheEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"limit": limit,
	})
}
