package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

// Store implements conversation.Store using an in-memory map.
type Store struct {
	mu sync.RWMutex

	// convs maps a thread key to its conversation
	convs map[conversation.ThreadKey]*conversation.Conversation

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		convs: make(map[conversation.ThreadKey]*conversation.Conversation),
		now:   time.Now,
	}
}

func (s *Store) Append(_ context.Context, key conversation.ThreadKey, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[key]
	if !ok {
		c = &conversation.Conversation{
			ID:        uuid.NewString(),
			UserID:    key.UserID,
			ThreadID:  key.ThreadID,
			AgentName: key.AgentName,
			Messages:  []conversation.Message{},
			CreatedAt: s.now().UTC(),
		}
		s.convs[key] = c
	}
	c.Messages = append(c.Messages, msgs...)
	return nil
}

func (s *Store) Retrieve(_ context.Context, key conversation.ThreadKey) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[key]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) Clear(_ context.Context, userID, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only the oldest matching conversation is removed.
	var oldest *conversation.ThreadKey
	for k, c := range s.convs {
		if k.UserID != userID || k.ThreadID != threadID {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(s.convs[*oldest].CreatedAt) {
			kk := k
			oldest = &kk
		}
	}
	if oldest == nil {
		return false, nil
	}
	delete(s.convs, *oldest)
	return true, nil
}

func (s *Store) ClearAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = make(map[conversation.ThreadKey]*conversation.Conversation)
	return nil
}

// List returns conversations ordered by creation time.
func (s *Store) List(context.Context) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*conversation.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, clone(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

func clone(c *conversation.Conversation) *conversation.Conversation {
	cp := *c
	cp.Messages = append([]conversation.Message{}, c.Messages...)
	return &cp
}
