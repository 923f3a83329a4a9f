package testutils

import (
	"context"
	"sync"

	"github.com/xeleb-ai/xeleb/pkg/eventstream"
)

// MockPublisher records published turn events.
type MockPublisher struct {
	mu sync.Mutex

	Events []*eventstream.TurnEvent

	// Err makes PublishTurn fail after recording the event.
	Err    error
	Closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTurn(_ context.Context, event *eventstream.TurnEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []*eventstream.TurnEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.TurnEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
