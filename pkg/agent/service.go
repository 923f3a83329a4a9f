package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/eventstream"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/worker"
)

// DefaultRecallLimit is how many long-term memory facts join a question.
const DefaultRecallLimit = 3

// Question is one user question addressed to a thread.
type Question struct {
	UserThread conversation.ThreadKey `json:"user_thread"`
	Question   string                 `json:"question"`
}

// Answer is the agent reply and how long it took, formatted as "1.23s".
type Answer struct {
	Response     string `json:"response"`
	ResponseTime string `json:"response_time"`
}

// TurnSink receives answered turns for asynchronous side effects.
// *worker.Pool implements it. Enqueue must not block.
type TurnSink interface {
	Enqueue(job worker.Job) bool
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Agents        *Manager
	Conversations conversation.Store

	// Sink and Memory are optional.
	Sink   TurnSink
	Memory memory.Driver

	// DefaultThreadID replaces a missing thread id. Empty means
	// conversation.DefaultThreadID.
	DefaultThreadID string

	// DefaultAgent replaces a missing agent name. Empty means the
	// manager's default agent.
	DefaultAgent string

	// HistoryMessages is how many recent messages join a question.
	HistoryMessages int
	RecallLimit     int

	// Channel tags turn events with where the question came from.
	Channel string

	Logger *slog.Logger
}

// Service answers questions with conversation memory: it loads the thread,
// asks the agent and appends the turn.
type Service struct {
	cfg ServiceConfig
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultThreadID == "" {
		cfg.DefaultThreadID = conversation.DefaultThreadID
	}
	if cfg.DefaultAgent == "" && cfg.Agents != nil {
		cfg.DefaultAgent = cfg.Agents.DefaultName()
	}
	if cfg.HistoryMessages <= 0 {
		cfg.HistoryMessages = conversation.DefaultRecentMessages
	}
	if cfg.RecallLimit <= 0 {
		cfg.RecallLimit = DefaultRecallLimit
	}
	return &Service{cfg: cfg}
}

// Agents returns the agent manager.
func (s *Service) Agents() *Manager {
	return s.cfg.Agents
}

// Conversations returns the conversation store.
func (s *Service) Conversations() conversation.Store {
	return s.cfg.Conversations
}

// WithChannel returns a Service sharing s's dependencies whose turn events
// are tagged with channel.
func (s *Service) WithChannel(channel string) *Service {
	cfg := s.cfg
	cfg.Channel = channel
	return &Service{cfg: cfg}
}

// Resolve fills the thread and agent defaults of key.
func (s *Service) Resolve(key conversation.ThreadKey) conversation.ThreadKey {
	if key.ThreadID == "" {
		key.ThreadID = s.cfg.DefaultThreadID
	}
	return key.WithDefaults(s.cfg.DefaultAgent)
}

// Ask answers q and records the turn.
func (s *Service) Ask(ctx context.Context, q Question) (Answer, error) {
	started := time.Now()

	key, a, in, err := s.prepare(ctx, q)
	if err != nil {
		return Answer{}, err
	}

	reply, err := a.Answer(ctx, in)
	if err != nil {
		return Answer{}, err
	}

	return s.finish(ctx, key, q.Question, reply, started, false)
}

// AskStream answers q, passing reply chunks to onDelta as they arrive, and
// records the turn once the reply is complete.
func (s *Service) AskStream(ctx context.Context, q Question, onDelta func(string) error) (Answer, error) {
	started := time.Now()

	key, a, in, err := s.prepare(ctx, q)
	if err != nil {
		return Answer{}, err
	}

	sr, err := a.Stream(ctx, in)
	if err != nil {
		return Answer{}, err
	}
	reply, err := Drain(sr, onDelta)
	if err != nil {
		return Answer{}, fmt.Errorf("streaming answer: %w", err)
	}

	return s.finish(ctx, key, q.Question, reply, started, true)
}

func (s *Service) prepare(ctx context.Context, q Question) (conversation.ThreadKey, *Agent, Input, error) {
	key := s.Resolve(q.UserThread)
	if strings.TrimSpace(q.Question) == "" {
		return key, nil, Input{}, ErrEmptyQuestion
	}

	a, err := s.cfg.Agents.Get(ctx, key.AgentName)
	if err != nil {
		return key, nil, Input{}, err
	}

	in := Input{Question: q.Question}

	conv, err := s.cfg.Conversations.Retrieve(ctx, key)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
	case err != nil:
		return key, nil, Input{}, fmt.Errorf("retrieving conversation: %w", err)
	default:
		if in.History, err = conversation.FormatRecent(conv, s.cfg.HistoryMessages); err != nil {
			return key, nil, Input{}, err
		}
	}

	if s.cfg.Memory != nil {
		facts, err := s.cfg.Memory.Recall(ctx, memory.Scope{UserID: key.UserID, AgentName: key.AgentName}, q.Question, s.cfg.RecallLimit)
		if err != nil {
			s.cfg.Logger.Warn("memory recall failed", "user_id", key.UserID, "agent", key.AgentName, "error", err)
		}
		in.Memory = memory.Format(facts)
	}

	return key, a, in, nil
}

func (s *Service) finish(ctx context.Context, key conversation.ThreadKey, question, reply string, started time.Time, streaming bool) (Answer, error) {
	err := s.cfg.Conversations.Append(ctx, key,
		conversation.Message{Role: conversation.RoleUser, Content: question},
		conversation.Message{Role: conversation.RoleAssistant, Content: reply},
	)
	if err != nil {
		return Answer{}, fmt.Errorf("saving conversation: %w", err)
	}

	completed := time.Now()
	if s.cfg.Sink != nil {
		ev := eventstream.NewTurnEvent(eventstream.EventSource{
			UserID:    key.UserID,
			ThreadID:  key.ThreadID,
			AgentName: key.AgentName,
			Channel:   s.cfg.Channel,
		}, question, reply, started, completed, streaming)
		s.cfg.Sink.Enqueue(worker.Job{Event: ev})
	}

	elapsed := completed.Sub(started)
	s.cfg.Logger.Info("question answered",
		"user_id", key.UserID,
		"thread_id", key.ThreadID,
		"agent", key.AgentName,
		"duration", elapsed,
		"streaming", streaming,
	)

	return Answer{
		Response:     reply,
		ResponseTime: FormatResponseTime(elapsed),
	}, nil
}

// FormatResponseTime renders d in seconds with two decimals.
func FormatResponseTime(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
