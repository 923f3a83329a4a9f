// Package agent runs persona agents: a ReAct loop over a tool calling chat
// model with the knowledge base search tool, plus the manager that builds
// agents from stored profiles and the service that ties answers to
// conversation memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/xeleb-ai/xeleb/pkg/metrics"
)

// DefaultMaxSteps bounds the reason/act loop.
const DefaultMaxSteps = 12

var (
	// ErrUnknownAgent is returned for agent names without a profile.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("question is required")
)

// Config builds one Agent.
type Config struct {
	Name         string
	SystemPrompt string
	MaxSteps     int

	Model     model.ToolCallingChatModel
	Retriever Retriever
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Input is one question with the formatted recent history of its thread
// and facts recalled from earlier threads.
type Input struct {
	Question string
	History  string
	Memory   string
}

// Agent is a persona agent.
type Agent struct {
	name   string
	prompt string
	runner *react.Agent
	logger *slog.Logger
}

// New builds the ReAct graph for a persona.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, errors.New("agent needs a chat model")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("agent needs a retriever")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	logger := cfg.Logger.With("agent", cfg.Name)

	searchTool := &searchTool{retriever: cfg.Retriever, metrics: cfg.Metrics, logger: logger}
	runner, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.Model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{searchTool},
			UnknownToolsHandler: func(_ context.Context, name, _ string) (string, error) {
				logger.Warn("model called an unknown tool", "tool", name)
				return fmt.Sprintf("unknown tool %q, only %s is available", name, SearchToolName), nil
			},
		},
		MaxStep: cfg.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("building agent %s: %w", cfg.Name, err)
	}

	return &Agent{
		name:   cfg.Name,
		prompt: cfg.SystemPrompt,
		runner: runner,
		logger: logger,
	}, nil
}

// Name returns the persona name.
func (a *Agent) Name() string {
	return a.name
}

// Messages assembles the model input for in.
func (a *Agent) Messages(in Input) []*schema.Message {
	msgs := make([]*schema.Message, 0, 4)
	if a.prompt != "" {
		msgs = append(msgs, schema.SystemMessage(a.prompt))
	}
	if m := strings.TrimSpace(in.Memory); m != "" {
		msgs = append(msgs, schema.SystemMessage("What you remember from earlier conversations with this user:\n"+m))
	}
	if h := strings.TrimSpace(in.History); h != "" {
		msgs = append(msgs, schema.SystemMessage("Recent conversation with this user:\n"+h))
	}
	return append(msgs, schema.UserMessage(in.Question))
}

// Answer runs the agent to completion and returns the final reply.
func (a *Agent) Answer(ctx context.Context, in Input) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", ErrEmptyQuestion
	}

	out, err := a.runner.Generate(ctx, a.Messages(in))
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.name, err)
	}
	return out.Content, nil
}

// Stream runs the agent and streams the final reply. Tool calls happen
// before the first chunk arrives.
func (a *Agent) Stream(ctx context.Context, in Input) (*schema.StreamReader[*schema.Message], error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	sr, err := a.runner.Stream(ctx, a.Messages(in))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.name, err)
	}
	return sr, nil
}

// Drain reads sr to the end, calling onDelta for every non-empty content
// chunk, and returns the concatenated reply.
func Drain(sr *schema.StreamReader[*schema.Message], onDelta func(string) error) (string, error) {
	defer sr.Close()

	var b strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		b.WriteString(msg.Content)
		if onDelta != nil {
			if err := onDelta(msg.Content); err != nil {
				return b.String(), err
			}
		}
	}
}
