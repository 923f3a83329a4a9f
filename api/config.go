// Package api serves the persona agents, their profiles, chat history and
// the knowledge base over HTTP.
package api

import (
	"net/http"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7888")
	ListenAddr string

	// Service answers questions and owns the agents and conversations.
	Service *agent.Service

	// Profiles backs the /v1/agents routes.
	Profiles profile.Store

	// Searcher and Collection back /v1/search and /v1/knowledge. Either may
	// be nil, in which case the route answers 503.
	Searcher   *apisearch.Searcher
	Collection vector.CollectionManager

	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}
