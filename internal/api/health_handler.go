package api

import (
	"net/http"
	"time"

	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/store"
)

var startTime = time.Now()

type healthHandler struct {
	store    store.Store
	registry *provider.Registry
}

type healthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	UptimeSeconds int      `json:"uptime_seconds"`
	Database      string   `json:"database"`
	Providers     []string `json:"providers"`
}

func (h *healthHandler) get(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       "0.1.0",
		UptimeSeconds: int(time.Since(startTime).Seconds()),
		Database:      "ok",
		Providers:     []string{},
	}
	for _, p := range h.registry.List() {
		resp.Providers = append(resp.Providers, p.Name())
	}
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
