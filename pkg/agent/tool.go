package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
)

// SearchToolName is the knowledge base tool offered to every agent.
const SearchToolName = "search_similar_texts"

// Retriever runs the knowledge retrieval pipeline. *search.Searcher
// implements it.
type Retriever interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.Output, error)
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// searchTool exposes a Retriever to the model. Results are returned as the
// numbered context block produced by search.FormatResults.
type searchTool struct {
	retriever Retriever
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

var _ tool.InvokableTool = (*searchTool)(nil)

func (t *searchTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: SearchToolName,
		Desc: "Search the knowledge base for passages similar to the query. " +
			"Use it for any question about facts, events, products or opinions of the persona.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to look up, phrased as a question or keywords",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: fmt.Sprintf("Number of candidates fetched before reranking (default %d)", search.DefaultLimit),
			},
		}),
	}, nil
}

func (t *searchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		t.metrics.ToolCall(SearchToolName, "error")
		return "", fmt.Errorf("decoding %s arguments: %w", SearchToolName, err)
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		t.metrics.ToolCall(SearchToolName, "error")
		return "", fmt.Errorf("%s: query is required", SearchToolName)
	}

	out, err := t.retriever.Search(ctx, args.Query, search.Options{Limit: args.Limit})
	if err != nil {
		t.metrics.ToolCall(SearchToolName, "error")
		t.logger.Warn("knowledge search failed", "query", args.Query, "error", err)
		return "", err
	}

	t.metrics.ToolCall(SearchToolName, "ok")
	t.logger.Debug("knowledge search", "query", args.Query, "results", out.Count, "reranked", out.Reranked)
	return search.FormatResults(out.Results), nil
}
