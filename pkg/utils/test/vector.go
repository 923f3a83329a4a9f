package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/xeleb-ai/xeleb/pkg/vector"
)

// MockVectorDriver is a test vector driver. Added documents are kept by id;
// Query returns Results, trimmed to TopK.
type MockVectorDriver struct {
	mu sync.Mutex

	Documents map[string]vector.Document
	Results   []vector.QueryResult

	// QueryErr and AddErr make the matching calls fail.
	QueryErr error
	AddErr   error

	// LastQuery is the options of the most recent Query call.
	LastQuery vector.QueryOptions
	Queries   int
	Deleted   []string

	Collection *vector.CollectionInfo
	Closed     bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make(map[string]vector.Document),
		Results:   make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	for _, d := range docs {
		m.Documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastQuery = opts
	m.Queries++
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	results := make([]vector.QueryResult, 0, len(m.Results))
	for _, r := range m.Results {
		if vector.MatchesFilter(r.Payload, opts.Filter) {
			results = append(results, r)
		}
	}
	results = vector.AboveThreshold(results, opts.ScoreThreshold)
	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.Documents[id]; ok {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.Documents, id)
	}
	m.Deleted = append(m.Deleted, ids...)
	return nil
}

// DocumentCount returns the number of stored documents.
func (m *MockVectorDriver) DocumentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Documents)
}

// Document returns a stored document by id.
func (m *MockVectorDriver) Document(id string) (vector.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Documents[id]
	return d, ok
}

func (m *MockVectorDriver) EnsureCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Collection == nil {
		m.Collection = &vector.CollectionInfo{Name: "knowledgebase", VectorSize: 3, Distance: "Cosine"}
	}
	return nil
}

func (m *MockVectorDriver) CreateCollection(ctx context.Context) error {
	m.mu.Lock()
	exists := m.Collection != nil
	m.mu.Unlock()
	if exists {
		return vector.ErrCollectionExists
	}
	return m.EnsureCollection(ctx)
}

func (m *MockVectorDriver) DropCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Collection = nil
	m.Documents = make(map[string]vector.Document)
	return nil
}

func (m *MockVectorDriver) CollectionInfo(context.Context) (vector.CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Collection == nil {
		return vector.CollectionInfo{}, errors.New("collection not found")
	}
	info := *m.Collection
	info.PointsCount = uint64(len(m.Documents))
	return info, nil
}

func (m *MockVectorDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// DeletedIDs returns a copy of every deleted id in order.
func (m *MockVectorDriver) DeletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deleted...)
}
