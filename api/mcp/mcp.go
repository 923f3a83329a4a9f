// Package mcp exposes the knowledge base, agent profiles and agent memory as
// MCP (Model Context Protocol) tools over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	"github.com/xeleb-ai/xeleb/pkg/utils"
)

// ProfileFinder looks up one agent profile.
type ProfileFinder interface {
	FindOne(ctx context.Context, field profile.Field, value string) (*profile.Profile, error)
}

type Config struct {
	// Searcher runs the retrieval pipeline behind search_knowledge.
	Searcher *apisearch.Searcher

	// Profiles backs get_agent_profile.
	Profiles ProfileFinder

	// Memory enables the recall_memory tool when set.
	Memory memory.Driver

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the knowledge and profile tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "xeleb",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Searcher == nil {
			return nil, errors.New("searcher is required")
		}
		if c.Profiles == nil {
			return nil, errors.New("profile store is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        profileToolName,
			Description: profileDescription,
		}, s.handleProfile)

		if c.Memory != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        memoryRecallToolName,
				Description: memoryRecallDescription,
			}, s.handleMemoryRecall)
		}
	}

	s.mcpServer = mcpServer
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, e.g. to connect an in-process
// transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
