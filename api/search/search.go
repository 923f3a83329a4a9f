// Package search is the knowledge retrieval pipeline shared by the agent's
// search tool, the REST search endpoint and the MCP server:
// embed, vector query, passages, rerank, truncate, results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/embeddings"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/rerank"
	"github.com/xeleb-ai/xeleb/pkg/rerank/passthrough"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

const (
	// DefaultLimit is the number of vector candidates fetched for reranking.
	DefaultLimit = 7

	// DefaultTopN is the number of passages kept after reranking.
	DefaultTopN = 5
)

// Options tunes one search. Zero values fall back to the Searcher defaults.
type Options struct {
	Limit          int      `json:"limit,omitempty"`
	TopN           int      `json:"top_n,omitempty"`
	ScoreThreshold *float32 `json:"score_threshold,omitempty"`
	// MinRerankScore drops reranked passages scoring below it. It is
	// ignored when results keep vector scores.
	MinRerankScore *float32 `json:"min_rerank_score,omitempty"`
}

// Result is one retrieved passage.
type Result struct {
	Score   float32        `json:"score"`
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload"`
}

// Output wraps the results of a search.
type Output struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Count   int      `json:"count"`

	// Reranked is false when reranking is disabled or failed, in which case
	// results keep vector order and vector scores.
	Reranked bool `json:"reranked"`
}

// Searcher runs the retrieval pipeline.
type Searcher struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	reranker rerank.Reranker
	defaults Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithDefaults sets the options used for zero fields of a search.
func WithDefaults(o Options) SearcherOption {
	return func(s *Searcher) {
		if o.Limit > 0 {
			s.defaults.Limit = o.Limit
		}
		if o.TopN > 0 {
			s.defaults.TopN = o.TopN
		}
		if o.ScoreThreshold != nil {
			s.defaults.ScoreThreshold = o.ScoreThreshold
		}
		if o.MinRerankScore != nil {
			s.defaults.MinRerankScore = o.MinRerankScore
		}
	}
}

// WithMetrics records stage latencies and rerank fallbacks.
func WithMetrics(m *metrics.Metrics) SearcherOption {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// NewSearcher creates a Searcher. A nil reranker keeps vector order.
func NewSearcher(
	embedder embeddings.Embedder,
	driver vector.Driver,
	reranker rerank.Reranker,
	logger *slog.Logger,
	opts ...SearcherOption,
) *Searcher {
	s := &Searcher{
		embedder: embedder,
		driver:   driver,
		reranker: reranker,
		defaults: Options{Limit: DefaultLimit, TopN: DefaultTopN},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Searcher) resolve(o Options) Options {
	if o.Limit <= 0 {
		o.Limit = s.defaults.Limit
	}
	if o.TopN <= 0 {
		o.TopN = s.defaults.TopN
	}
	if o.ScoreThreshold == nil {
		o.ScoreThreshold = s.defaults.ScoreThreshold
	}
	if o.MinRerankScore == nil {
		o.MinRerankScore = s.defaults.MinRerankScore
	}
	return o
}

// Search retrieves the passages most relevant to query. Embedding and vector
// store failures are returned; a reranker failure degrades to vector order.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) (*Output, error) {
	opts = s.resolve(opts)

	s.logger.Debug("search request",
		"query", query,
		"limit", opts.Limit,
		"top_n", opts.TopN,
	)

	started := time.Now()
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	s.metrics.ObserveStage("embed", started)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	started = time.Now()
	hits, err := s.driver.Query(ctx, queryEmbedding, vector.QueryOptions{
		TopK:           opts.Limit,
		ScoreThreshold: opts.ScoreThreshold,
	})
	s.metrics.ObserveStage("query", started)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	out := &Output{Query: query, Results: []Result{}}
	if len(hits) == 0 {
		return out, nil
	}

	passages := ToPassages(hits)

	ranked := passages
	out.Reranked = s.reranks()
	if s.reranker != nil {
		started = time.Now()
		ranked, err = s.reranker.Rerank(ctx, query, passages)
		s.metrics.ObserveStage("rerank", started)
		if err != nil {
			s.logger.Warn("rerank failed, keeping vector order",
				"reranker", s.reranker.Name(),
				"error", err,
			)
			s.metrics.RerankFallback()
			ranked = passages
			out.Reranked = false
		}
	}

	if opts.MinRerankScore != nil && out.Reranked {
		kept := make([]rerank.Passage, 0, len(ranked))
		for _, p := range ranked {
			if p.Score >= *opts.MinRerankScore {
				kept = append(kept, p)
			}
		}
		ranked = kept
	}

	if len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}

	out.Results = ToResults(ranked)
	out.Count = len(out.Results)
	return out, nil
}

// reranks reports whether the configured reranker rescores passages.
func (s *Searcher) reranks() bool {
	return s.reranker != nil && s.reranker.Name() != passthrough.Name
}

// ToPassages turns vector hits into rerank passages. Hits keep their
// order and vector score.
func ToPassages(hits []vector.QueryResult) []rerank.Passage {
	passages := make([]rerank.Passage, len(hits))
	for i, h := range hits {
		meta := h.Payload
		if meta == nil {
			meta = map[string]any{}
		}
		passages[i] = rerank.Passage{
			ID:    h.ID,
			Text:  h.Text,
			Meta:  meta,
			Score: h.Score,
		}
	}
	return passages
}

// ToResults turns ranked passages into search results.
func ToResults(passages []rerank.Passage) []Result {
	results := make([]Result, len(passages))
	for i, p := range passages {
		results[i] = Result{
			Score:   p.Score,
			ID:      p.ID,
			Text:    p.Text,
			Payload: p.Meta,
		}
	}
	return results
}

// FormatResults renders results as the numbered context block handed to the
// chat model.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No relevant information found in the knowledge base."
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] ", i+1)
		if name, ok := r.Payload["filename"].(string); ok && name != "" {
			fmt.Fprintf(&b, "(%s) ", name)
		}
		b.WriteString(r.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
