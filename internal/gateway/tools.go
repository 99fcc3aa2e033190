package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/revittco/anibridge/internal/provider"
)

// Tool-name suffixes. Provider tools are named {provider}{suffix} so the
// provider is recoverable from the name regardless of underscores in it.
const (
	suffixSearch  = "_search_anime"
	suffixDetails = "_get_anime_details"

	toolListProviders = "list_providers"
	toolCacheStats    = "cache_stats"
)

// toolDefinitions builds the advertised tool set: one search and one details
// tool per capable provider, plus the built-ins.
func toolDefinitions(providers []provider.Provider) []Tool {
	tools := make([]Tool, 0, 2*len(providers)+2)
	for _, p := range providers {
		caps := p.Capabilities()
		if caps.Search {
			tools = append(tools, searchToolDefinition(p.Name()))
		}
		if caps.Details {
			tools = append(tools, detailsToolDefinition(p.Name()))
		}
	}
	tools = append(tools, listProvidersToolDefinition(), cacheStatsToolDefinition())
	return tools
}

func searchToolDefinition(providerName string) Tool {
	return Tool{
		Name: providerName + suffixSearch,
		Description: fmt.Sprintf(
			"Search the %s title index for anime by name. Matches exact titles first, then prefixes, then substrings, and returns IDs usable with %s%s.",
			providerName, providerName, suffixDetails),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"minLength": 2,
					"description": "Anime title or fragment to search for"
				},
				"limit": {
					"type": "integer",
					"minimum": 1,
					"maximum": 100,
					"description": "Maximum number of results (default 10)"
				}
			},
			"required": ["query"]
		}`),
	}
}

func detailsToolDefinition(providerName string) Tool {
	return Tool{
		Name: providerName + suffixDetails,
		Description: fmt.Sprintf(
			"Fetch the full %s record for one anime: titles, type, episode count, air dates, synopsis, ratings, tags and relations. Results are cached.",
			providerName),
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"anime_id": {
					"type": "integer",
					"minimum": 1,
					"description": "Anime ID from a search result"
				}
			},
			"required": ["anime_id"]
		}`),
	}
}

func listProvidersToolDefinition() Tool {
	return Tool{
		Name:        toolListProviders,
		Description: "List the configured anime data providers and the operations each supports.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}
}

func cacheStatsToolDefinition() Tool {
	return Tool{
		Name:        toolCacheStats,
		Description: "Report cache performance: per-tier entry counts, hit rates, evictions and expirations.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}
}

// splitToolName resolves a provider tool name into its provider and
// operation. ok is false for names that are not provider tools.
func splitToolName(name string) (providerName, op string, ok bool) {
	switch {
	case strings.HasSuffix(name, suffixSearch):
		return strings.TrimSuffix(name, suffixSearch), "search_anime", true
	case strings.HasSuffix(name, suffixDetails):
		return strings.TrimSuffix(name, suffixDetails), "get_anime_details", true
	default:
		return "", "", false
	}
}
