package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/revittco/anibridge/internal/analytics"
	"github.com/revittco/anibridge/internal/anicache"
	"github.com/revittco/anibridge/internal/provider"
	"github.com/revittco/anibridge/internal/store"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "anibridge"
	serverVersion   = "0.1.0"
)

// handler contains the logic for each MCP method.
type handler struct {
	registry *provider.Registry
	cache    *anicache.Store
	recorder *analytics.Recorder // nil = analytics disabled
	logger   *slog.Logger
}

func newHandler(reg *provider.Registry, cache *anicache.Store, rec *analytics.Recorder, logger *slog.Logger) *handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &handler{
		registry: reg,
		cache:    cache,
		recorder: rec,
		logger:   logger,
	}
}

func (h *handler) handleInitialize(
	_ context.Context, params json.RawMessage,
) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	h.logger.Info("client connected",
		"client", p.ClientInfo.Name, "version", p.ClientInfo.Version)

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCapability{
			Tools: &ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{Name: serverName, Version: serverVersion},
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (h *handler) handleToolsList(
	_ context.Context,
) (json.RawMessage, *RPCError) {
	tools := toolDefinitions(h.registry.List())

	result := map[string]any{"tools": tools}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (h *handler) handleToolsCall(
	ctx context.Context, params json.RawMessage,
) (json.RawMessage, *RPCError) {
	var req CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	switch req.Name {
	case toolListProviders:
		return h.handleListProviders()
	case toolCacheStats:
		return h.handleCacheStats(ctx)
	}

	providerName, op, ok := splitToolName(req.Name)
	if !ok {
		return nil, &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown tool: %s", req.Name),
		}
	}
	p, ok := h.registry.Get(providerName)
	if !ok {
		return nil, &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown tool: %s", req.Name),
		}
	}

	if op == "search_anime" {
		return h.handleSearchCall(ctx, p, req.Arguments)
	}
	return h.handleDetailsCall(ctx, p, req.Arguments)
}

// handleSearchCall validates, dispatches, and renders one search tool call.
// Provider failures come back as isError tool results, never as protocol
// errors: the agent should read them and adjust, not crash the session.
func (h *handler) handleSearchCall(
	ctx context.Context, p provider.Provider, rawArgs json.RawMessage,
) (json.RawMessage, *RPCError) {
	start := time.Now()

	if err := validateArgs(searchToolDefinition(p.Name()).InputSchema, rawArgs); err != nil {
		return marshalErrorResult(err.Error()), nil
	}

	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	results, err := p.SearchAnime(ctx, args.Query, args.Limit)
	h.recordEvent(&store.SearchEvent{
		Provider:    p.Name(),
		Method:      "search_anime",
		Query:       args.Query,
		ResultCount: len(results),
		DurationMs:  msSince(start),
		Error:       errText(err),
	})
	if err != nil {
		return marshalErrorResult(fmt.Sprintf("search failed: %v", err)), nil
	}

	payload := struct {
		Query   string                  `json:"query"`
		Count   int                     `json:"count"`
		Results []provider.SearchResult `json:"results"`
	}{args.Query, len(results), results}
	return marshalJSONResult(payload)
}

// handleDetailsCall validates, dispatches, and renders one details tool
// call, recording cache metadata when the provider reports it.
func (h *handler) handleDetailsCall(
	ctx context.Context, p provider.Provider, rawArgs json.RawMessage,
) (json.RawMessage, *RPCError) {
	start := time.Now()

	if err := validateArgs(detailsToolDefinition(p.Name()).InputSchema, rawArgs); err != nil {
		return marshalErrorResult(err.Error()), nil
	}

	var args struct {
		AnimeID int `json:"anime_id"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	var (
		details *provider.AnimeDetails
		meta    provider.FetchMeta
		err     error
	)
	if md, ok := p.(provider.MetaDetailer); ok {
		details, meta, err = md.GetAnimeDetailsMeta(ctx, args.AnimeID)
	} else {
		details, err = p.GetAnimeDetails(ctx, args.AnimeID)
	}

	count := 0
	if details != nil {
		count = 1
	}
	h.recordEvent(&store.SearchEvent{
		Provider:    p.Name(),
		Method:      "get_anime_details",
		Query:       strconv.Itoa(args.AnimeID),
		ResultCount: count,
		CacheHit:    meta.CacheHit,
		CacheTier:   meta.CacheTier,
		DurationMs:  msSince(start),
		Error:       errText(err),
	})
	if err != nil {
		return marshalErrorResult(fmt.Sprintf("details lookup failed: %v", err)), nil
	}
	return marshalJSONResult(details)
}

func (h *handler) handleListProviders() (json.RawMessage, *RPCError) {
	type providerInfo struct {
		Name         string                `json:"name"`
		Capabilities provider.Capabilities `json:"capabilities"`
	}

	list := h.registry.List()
	infos := make([]providerInfo, len(list))
	for i, p := range list {
		infos[i] = providerInfo{Name: p.Name(), Capabilities: p.Capabilities()}
	}

	payload := struct {
		Providers []providerInfo `json:"providers"`
	}{infos}
	return marshalJSONResult(payload)
}

func (h *handler) handleCacheStats(ctx context.Context) (json.RawMessage, *RPCError) {
	stats, err := h.cache.Stats(ctx)
	if err != nil {
		return nil, &RPCError{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("cache stats: %v", err),
		}
	}
	return marshalJSONResult(stats)
}

// marshalJSONResult renders v as indented JSON inside MCP text content.
func marshalJSONResult(v any) (json.RawMessage, *RPCError) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return marshalToolResult(string(data)), nil
}

// recordEvent hands one analytics event to the recorder. Only dispatched
// provider calls are recorded; schema rejections never reach a provider and
// would skew the provider error stats.
func (h *handler) recordEvent(e *store.SearchEvent) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(e)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// errText renders an error for the analytics row, trimmed so an upstream
// body dump cannot bloat the table.
func errText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
