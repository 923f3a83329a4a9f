// Package openai implements an eino tool calling chat model on the OpenAI
// chat completions API. Azure OpenAI and OpenAI compatible servers such as
// Ollama's /v1 endpoint are reached through the same client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Config holds the connection and sampling settings of a ChatModel.
type Config struct {
	// BaseURL overrides the API URL. Empty means api.openai.com.
	BaseURL string
	APIKey  string

	// APIVersion switches the client to Azure OpenAI when set.
	APIVersion string

	Model       string
	Temperature float32
}

// ChatModel is a model.ToolCallingChatModel backed by go-openai.
type ChatModel struct {
	client      *goopenai.Client
	model       string
	temperature float32
	tools       []goopenai.Tool
	logger      *slog.Logger
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

// NewChatModel creates a chat model client.
func NewChatModel(cfg Config, logger *slog.Logger) (*ChatModel, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai chat model needs an API key or a base URL")
	}

	var clientCfg goopenai.ClientConfig
	switch {
	case cfg.APIVersion != "" && cfg.BaseURL != "":
		clientCfg = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientCfg.APIVersion = cfg.APIVersion
	default:
		clientCfg = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}

	return &ChatModel{
		client:      goopenai.NewClientWithConfig(clientCfg),
		model:       name,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// WithTools returns a copy of m that offers tools to the model on every call.
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toOpenAITools(tools)
	if err != nil {
		return nil, err
	}
	cp := *m
	cp.tools = converted
	return &cp, nil
}

// Generate runs one chat completion and returns the assistant message.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req, err := m.request(input, opts)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := fromOpenAIMessage(choice.Message)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(choice.FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	m.logger.Debug("chat completion",
		"model", req.Model,
		"finish_reason", choice.FinishReason,
		"tool_calls", len(out.ToolCalls),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return out, nil
}

// Stream runs a streaming chat completion. Each chunk is a partial assistant
// message; concatenating them with schema.ConcatMessages yields the full one.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req, err := m.request(input, opts)
	if err != nil {
		return nil, err
	}

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				sw.Send(nil, fmt.Errorf("panic reading chat stream: %v", p))
			}
			_ = stream.Close()
			sw.Close()
		}()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sw.Send(nil, fmt.Errorf("reading chat stream: %w", err))
				return
			}

			msg := fromStreamChunk(chunk)
			if msg == nil {
				continue
			}
			if closed := sw.Send(msg, nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

func (m *ChatModel) request(input []*schema.Message, opts []model.Option) (goopenai.ChatCompletionRequest, error) {
	temperature := m.temperature
	name := m.model
	options := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		Model:       &name,
	}, opts...)

	req := goopenai.ChatCompletionRequest{
		Model:    name,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(input)),
		Tools:    m.tools,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if options.TopP != nil {
		req.TopP = *options.TopP
	}
	if len(options.Stop) > 0 {
		req.Stop = options.Stop
	}
	if len(options.Tools) > 0 {
		tools, err := toOpenAITools(options.Tools)
		if err != nil {
			return req, err
		}
		req.Tools = tools
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, toOpenAIMessage(msg))
	}
	return req, nil
}

func toOpenAITools(tools []*schema.ToolInfo) ([]goopenai.Tool, error) {
	out := make([]goopenai.Tool, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}

		var params any = map[string]any{"type": "object", "properties": map[string]any{}}
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s parameters: %w", info.Name, err)
			}
			if js != nil {
				params = js
			}
		}

		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  params,
			},
		})
	}
	return out, nil
}

func toOpenAIMessage(msg *schema.Message) goopenai.ChatCompletionMessage {
	out := goopenai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg goopenai.ChatCompletionMessage) *schema.Message {
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: msg.Content,
	}
	out.ToolCalls = fromOpenAIToolCalls(msg.ToolCalls)
	return out
}

func fromOpenAIToolCalls(calls []goopenai.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, schema.ToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

// fromStreamChunk converts one streamed delta. Chunks without a choice are
// dropped unless they carry usage.
func fromStreamChunk(chunk goopenai.ChatCompletionStreamResponse) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant}
	if chunk.Usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			},
		}
	}

	if len(chunk.Choices) == 0 {
		if msg.ResponseMeta == nil {
			return nil
		}
		return msg
	}

	choice := chunk.Choices[0]
	msg.Content = choice.Delta.Content
	msg.ToolCalls = fromOpenAIToolCalls(choice.Delta.ToolCalls)
	if choice.FinishReason != "" {
		if msg.ResponseMeta == nil {
			msg.ResponseMeta = &schema.ResponseMeta{}
		}
		msg.ResponseMeta.FinishReason = string(choice.FinishReason)
	}
	return msg
}
