package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
)

var (
	searchToolName    = "search_knowledge"
	searchDescription = "Search the persona knowledge base. Embeds the query, fetches the nearest passages from the vector store, reranks them with the cross-encoder and returns the best passages with their source file."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to find relevant knowledge passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"vector candidates to fetch before reranking (default: 7)"`
	TopN  int    `json:"top_n,omitempty" jsonschema:"passages to return after reranking (default: 5)"`
}

// Passage is one retrieved knowledge passage.
type Passage struct {
	ID     string  `json:"id"`
	Score  float32 `json:"score"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
	Count    int       `json:"count"`
	Reranked bool      `json:"reranked"`
}

// handleSearch runs the retrieval pipeline for input.Query.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query is required")
	}

	s.config.Logger.Debug("MCP search request",
		"query", input.Query,
		"limit", input.Limit,
		"top_n", input.TopN,
	)

	out, err := s.config.Searcher.Search(ctx, input.Query, apisearch.Options{
		Limit: input.Limit,
		TopN:  input.TopN,
	})
	if err != nil {
		s.config.Logger.Error("MCP search failed", "error", err)
		return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}

	return nil, toSearchOutput(out), nil
}

func toSearchOutput(out *apisearch.Output) SearchOutput {
	passages := make([]Passage, 0, len(out.Results))
	for _, r := range out.Results {
		source, _ := r.Payload["filename"].(string)
		passages = append(passages, Passage{
			ID:     r.ID,
			Score:  r.Score,
			Source: source,
			Text:   r.Text,
		})
	}

	return SearchOutput{
		Query:    out.Query,
		Passages: passages,
		Count:    len(passages),
		Reranked: out.Reranked,
	}
}
