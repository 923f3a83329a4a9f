// Package llmutils is the chat model utility package
package llmutils

import (
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/xeleb-ai/xeleb/pkg/llm"
	"github.com/xeleb-ai/xeleb/pkg/llm/openai"
)

// DefaultOllamaURL is Ollama's OpenAI compatible endpoint.
const DefaultOllamaURL = "http://localhost:11434/v1"

func NewChatModel(cfg llm.Config, logger *slog.Logger) (model.ToolCallingChatModel, error) {
	provider, err := llm.NormalizeProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	oc := openai.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	}

	switch provider {
	case llm.ProviderAzure:
		oc.APIVersion = cfg.APIVersion
	case llm.ProviderOllama:
		if oc.BaseURL == "" {
			oc.BaseURL = DefaultOllamaURL
		}
		if oc.APIKey == "" {
			oc.APIKey = "ollama"
		}
	}

	return openai.NewChatModel(oc, logger.With("provider", provider))
}
