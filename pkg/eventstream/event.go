package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeConversationTurn is emitted after a question and its answer
	// are stored in conversation memory.
	EventTypeConversationTurn = "conversation.turn"
)

// TurnEvent is a transport-neutral event payload for one answered question.
type TurnEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Timing        TurnTiming  `json:"timing"`
	Question      string      `json:"question"`
	Answer        string      `json:"answer"`
}

// EventSource identifies the conversation the turn belongs to.
type EventSource struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	AgentName string `json:"agent_name"`
	Channel   string `json:"channel,omitempty"`
}

// TurnTiming captures the answer latency.
type TurnTiming struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
}

// NewTurnEvent stamps a v1 turn event with a fresh id.
func NewTurnEvent(src EventSource, question, answer string, started, completed time.Time, streaming bool) *TurnEvent {
	return &TurnEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeConversationTurn,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
		Timing: TurnTiming{
			StartedAt:   started,
			CompletedAt: completed,
			DurationMs:  completed.Sub(started).Milliseconds(),
			Streaming:   streaming,
		},
		Question: question,
		Answer:   answer,
	}
}

// Key partitions events so that the turns of one thread stay ordered.
func (e *TurnEvent) Key() string {
	return e.Source.UserID + "/" + e.Source.ThreadID + "/" + e.Source.AgentName
}
