// Package llm holds the chat model settings shared by the persona agents.
// Models implement eino's model.ToolCallingChatModel so the agent runtime can
// bind tools and drive the reason/act loop.
package llm

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

// DefaultTemperature is the sampling temperature persona agents answer with.
const DefaultTemperature = 0.9

// Config selects and configures a chat model.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	APIVersion  string
	Model       string
	Temperature float32
}

// Usage contains token counts reported for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add accumulates u into a running total.
func (t *Usage) Add(u Usage) {
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
	t.TotalTokens += u.TotalTokens
}

// UsageOf reads token usage from a model message. Messages without response
// metadata report zero usage.
func UsageOf(msg *schema.Message) Usage {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return Usage{}
	}
	u := msg.ResponseMeta.Usage
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// NormalizeProvider lowercases p and maps an empty value to ProviderOpenAI.
func NormalizeProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "":
		return ProviderOpenAI, nil
	case ProviderOpenAI, ProviderAzure, ProviderOllama:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported llm provider: %s", p)
	}
}
