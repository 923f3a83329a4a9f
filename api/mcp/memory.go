package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xeleb-ai/xeleb/pkg/memory"
)

const defaultRecallLimit = 5

var (
	memoryRecallToolName    = "recall_memory"
	memoryRecallDescription = "Recall what a user told a persona agent in earlier conversations. Returns past question and answer turns of that user with that agent, most relevant to the query first."
)

// MemoryRecallInput represents the input arguments for the recall tool.
type MemoryRecallInput struct {
	UserID    string `json:"user_id" jsonschema:"the user whose memory to search"`
	AgentName string `json:"agent_name" jsonschema:"the agent the user talked to"`
	Query     string `json:"query,omitempty" jsonschema:"what to recall; empty returns the most recent turns"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum facts to return (default: 5)"`
}

// MemoryRecallOutput represents the structured output of a memory recall.
type MemoryRecallOutput struct {
	Facts []memory.Fact `json:"facts"`
}

// handleMemoryRecall processes a memory recall request via MCP.
func (s *Server) handleMemoryRecall(ctx context.Context, _ *mcp.CallToolRequest, input MemoryRecallInput) (*mcp.CallToolResult, MemoryRecallOutput, error) {
	if input.UserID == "" || input.AgentName == "" {
		return nil, MemoryRecallOutput{}, errors.New("user_id and agent_name are required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	facts, err := s.config.Memory.Recall(ctx, memory.Scope{
		UserID:    input.UserID,
		AgentName: input.AgentName,
	}, input.Query, limit)
	if err != nil {
		return nil, MemoryRecallOutput{}, fmt.Errorf("memory recall failed: %w", err)
	}

	if facts == nil {
		facts = []memory.Fact{}
	}
	return nil, MemoryRecallOutput{Facts: facts}, nil
}
