// Package api serves the optional read-only admin endpoints: health, cache
// and search statistics, and Prometheus metrics. It never mutates state; all
// write paths stay on the CLI and the MCP tools.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/store"
)

// RouterDeps holds the dependencies needed by the admin HTTP router.
type RouterDeps struct {
	Cache    *anicache.Store
	Store    store.Store
	Registry *provider.Registry
	Metrics  prometheus.Gatherer // optional; enables /metrics
}

// NewRouter creates an http.Handler with all admin routes.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	hh := &healthHandler{store: deps.Store, registry: deps.Registry}
	mux.HandleFunc("GET /api/health", hh.get)

	ch := &cacheHandler{cache: deps.Cache, store: deps.Store}
	mux.HandleFunc("GET /api/cache/stats", ch.stats)
	mux.HandleFunc("GET /api/cache/top", ch.top)

	sh := &searchStatsHandler{store: deps.Store}
	mux.HandleFunc("GET /api/search/stats", sh.stats)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}
