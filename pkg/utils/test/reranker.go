package testutils

import (
	"context"
	"sync"

	"github.com/xeleb-ai/xeleb/pkg/rerank"
)

// MockReranker scores passages from Scores (keyed by passage id). Passages
// without a score keep theirs.
type MockReranker struct {
	mu sync.Mutex

	Scores map[string]float32
	Err    error

	Calls     int
	LastQuery string
}

func NewMockReranker() *MockReranker {
	return &MockReranker{Scores: make(map[string]float32)}
}

func (m *MockReranker) Rerank(_ context.Context, query string, passages []rerank.Passage) ([]rerank.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastQuery = query
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]rerank.Passage, len(passages))
	for i, p := range passages {
		if s, ok := m.Scores[p.ID]; ok {
			p.Score = s
		}
		out[i] = p
	}
	rerank.SortByScore(out)
	return out, nil
}

func (m *MockReranker) Name() string {
	return "mock"
}
