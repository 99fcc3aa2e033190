package api

import (
	"net/http"
	"time"

	"github.com/revittco/anibridge/internal/store"
)

type searchStatsHandler struct {
	store store.SearchEventStore
}

// stats aggregates search events per provider. The window defaults to the
// last 24 hours; after/before accept RFC 3339 timestamps.
func (h *searchStatsHandler) stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	before := time.Now().UTC()
	after := before.Add(-24 * time.Hour)

	if v := q.Get("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			after = t
		}
	}
	if v := q.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			before = t
		}
	}

	stats, err := h.store.SearchStatsByProvider(r.Context(), after, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query search stats")
		return
	}
	if stats == nil {
		stats = []store.ProviderSearchStats{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":   stats,
		"after":  after,
		"before": before,
	})
}
