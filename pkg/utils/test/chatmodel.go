package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel is a scripted tool calling chat model. Each Generate or
// Stream call returns the next scripted reply; once the script runs out it
// answers with Fallback.
type MockChatModel struct {
	mu sync.Mutex

	Replies  []*schema.Message
	Fallback string
	Err      error

	next   int
	inputs [][]*schema.Message
	tools  []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)

// NewMockChatModel creates a model that plays replies in order.
func NewMockChatModel(replies ...*schema.Message) *MockChatModel {
	return &MockChatModel{
		Replies:  replies,
		Fallback: "ok",
	}
}

// ToolCall builds an assistant message calling name with JSON arguments.
func ToolCall(id, name, arguments string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: arguments},
	}})
}

// WithTools records tools and returns m itself.
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

func (m *MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return m.reply(input)
}

func (m *MockChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.reply(input)
	if err != nil {
		return nil, err
	}
	if len(msg.ToolCalls) > 0 || len(msg.Content) < 2 {
		return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
	}
	// Split text replies so consumers see more than one chunk.
	half := len(msg.Content) / 2
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(msg.Content[:half], nil),
		schema.AssistantMessage(msg.Content[half:], nil),
	}), nil
}

func (m *MockChatModel) reply(input []*schema.Message) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]*schema.Message, len(input))
	copy(cp, input)
	m.inputs = append(m.inputs, cp)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.next < len(m.Replies) {
		msg := m.Replies[m.next]
		m.next++
		if msg == nil {
			return nil, errors.New("mock chat model: nil scripted reply")
		}
		return msg, nil
	}
	return schema.AssistantMessage(m.Fallback, nil), nil
}

// Calls returns the inputs of every call so far.
func (m *MockChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// BoundTools returns the tools of the last WithTools call.
func (m *MockChatModel) BoundTools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}
