// Package rerank reorders retrieved passages by query relevance.
package rerank

import (
	"context"
	"errors"
	"sort"
)

// ErrRerank is returned when the reranking service fails.
var ErrRerank = errors.New("rerank failed")

// Passage is a retrieved text with its metadata. Score holds the vector
// score before reranking and the relevance score after.
type Passage struct {
	ID    string         `json:"id"`
	Text  string         `json:"text"`
	Meta  map[string]any `json:"meta"`
	Score float32        `json:"score"`
}

// Reranker scores passages against a query.
type Reranker interface {
	// Rerank returns the passages ordered by descending relevance with
	// Score replaced by the relevance score.
	Rerank(ctx context.Context, query string, passages []Passage) ([]Passage, error)

	// Name identifies the reranker in logs and metrics.
	Name() string
}

// SortByScore orders passages by descending score, keeping the input order
// for ties.
func SortByScore(passages []Passage) {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
}
