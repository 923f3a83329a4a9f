// Package conversation stores the chat history between users and persona
// agents, one conversation per (user, thread, agent).
package conversation

import (
	"context"
	"errors"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultThreadID is used when a request carries no thread.
	DefaultThreadID = "1234"
)

var (
	// ErrNotFound is returned when no conversation exists for a thread key.
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidConversation is returned when a conversation has no message
	// list to format.
	ErrInvalidConversation = errors.New("invalid conversation: must contain a messages list")
)

// ThreadKey identifies one conversation.
type ThreadKey struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	AgentName string `json:"agent_name"`
}

// WithDefaults fills an empty thread id and agent name.
func (k ThreadKey) WithDefaults(agentName string) ThreadKey {
	if k.ThreadID == "" {
		k.ThreadID = DefaultThreadID
	}
	if k.AgentName == "" {
		k.AgentName = agentName
	}
	return k
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// Conversation is the stored history of a thread.
type Conversation struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"thread_id"`
	AgentName string    `json:"agent_name"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the thread key of c.
func (c *Conversation) Key() ThreadKey {
	return ThreadKey{UserID: c.UserID, ThreadID: c.ThreadID, AgentName: c.AgentName}
}

// Store persists conversations.
type Store interface {
	// Append adds messages to the conversation for key, creating it on the
	// first write. Appending nothing is a no-op.
	Append(ctx context.Context, key ThreadKey, msgs ...Message) error

	// Retrieve returns the conversation for key or ErrNotFound.
	Retrieve(ctx context.Context, key ThreadKey) (*Conversation, error)

	// Clear deletes the oldest live conversation of the user's thread
	// regardless of the agent, reporting whether one existed.
	Clear(ctx context.Context, userID, threadID string) (bool, error)

	// ClearAll deletes every conversation.
	ClearAll(ctx context.Context) error

	// List returns every stored conversation.
	List(ctx context.Context) ([]*Conversation, error)

	Close() error
}
