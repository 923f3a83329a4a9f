package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/xeleb-ai/xeleb/pkg/memory"
)

// ErrMockMemory is returned by MockMemoryDriver when a failure is requested.
var ErrMockMemory = errors.New("mock memory failure")

// MockMemoryDriver is a test memory driver that records calls and returns
// configurable results.
type MockMemoryDriver struct {
	mu sync.Mutex

	// StoredTurns accumulates all turns passed to Store.
	StoredTurns []memory.Turn

	// RecallResults is returned by Recall for any scope.
	RecallResults []memory.Fact

	// RecallQueries records the query of every Recall call.
	RecallQueries []string

	// FailStore causes Store to return an error.
	FailStore bool

	// FailRecall causes Recall to return an error.
	FailRecall bool
}

// NewMockMemoryDriver creates a new mock memory driver.
func NewMockMemoryDriver() *MockMemoryDriver {
	return &MockMemoryDriver{
		StoredTurns:   make([]memory.Turn, 0),
		RecallResults: make([]memory.Fact, 0),
	}
}

func (m *MockMemoryDriver) Store(_ context.Context, turn memory.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailStore {
		return ErrMockMemory
	}
	m.StoredTurns = append(m.StoredTurns, turn)
	return nil
}

func (m *MockMemoryDriver) Recall(_ context.Context, _ memory.Scope, query string, limit int) ([]memory.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecallQueries = append(m.RecallQueries, query)
	if m.FailRecall {
		return nil, ErrMockMemory
	}
	if limit > 0 && len(m.RecallResults) > limit {
		return m.RecallResults[:limit], nil
	}
	return m.RecallResults, nil
}

func (m *MockMemoryDriver) Close() error {
	return nil
}
