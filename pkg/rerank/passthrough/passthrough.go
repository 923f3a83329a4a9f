// Package passthrough is the Reranker used when reranking is disabled: it
// keeps the vector store's order and scores.
package passthrough

import (
	"context"

	"github.com/xeleb-ai/xeleb/pkg/rerank"
)

// Name identifies the passthrough reranker.
const Name = "none"

type Reranker struct{}

func New() *Reranker {
	return &Reranker{}
}

func (r *Reranker) Rerank(_ context.Context, _ string, passages []rerank.Passage) ([]rerank.Passage, error) {
	out := make([]rerank.Passage, len(passages))
	copy(out, passages)
	rerank.SortByScore(out)
	return out, nil
}

func (r *Reranker) Name() string {
	return Name
}

var _ rerank.Reranker = (*Reranker)(nil)
