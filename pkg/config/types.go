package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent xeleb configuration stored as config.toml
// in the .xeleb/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version      int                `toml:"version" mapstructure:"version"`
	Log          LogConfig          `toml:"log" mapstructure:"log"`
	API          APIConfig          `toml:"api" mapstructure:"api"`
	Client       ClientConfig       `toml:"client" mapstructure:"client"`
	VectorStore  VectorStoreConfig  `toml:"vector_store" mapstructure:"vector_store"`
	Embedding    EmbeddingConfig    `toml:"embedding" mapstructure:"embedding"`
	Rerank       RerankConfig       `toml:"rerank" mapstructure:"rerank"`
	Search       SearchConfig       `toml:"search" mapstructure:"search"`
	LLM          LLMConfig          `toml:"llm" mapstructure:"llm"`
	Agent        AgentConfig        `toml:"agent" mapstructure:"agent"`
	Conversation ConversationConfig `toml:"conversation" mapstructure:"conversation"`
	Profile      ProfileConfig      `toml:"profile" mapstructure:"profile"`
	EventStream  EventStreamConfig  `toml:"eventstream" mapstructure:"eventstream"`
	Worker       WorkerConfig       `toml:"worker" mapstructure:"worker"`
	Knowledge    KnowledgeConfig    `toml:"knowledge" mapstructure:"knowledge"`
	Telegram     TelegramConfig     `toml:"telegram" mapstructure:"telegram"`
	MCP          MCPConfig          `toml:"mcp" mapstructure:"mcp"`
}

// LogConfig controls service logging.
type LogConfig struct {
	Level string `toml:"level,omitempty" mapstructure:"level"`
	JSON  bool   `toml:"json,omitempty" mapstructure:"json"`
	File  string `toml:"file,omitempty" mapstructure:"file"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty" mapstructure:"listen"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server (xeleb chat, xeleb search).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty" mapstructure:"api_target"`
	UserID    string `toml:"user_id,omitempty" mapstructure:"user_id"`
}

// VectorStoreConfig holds vector store settings. Target is a host:port for
// qdrant, a URL for chroma and a file path for sqlite.
type VectorStoreConfig struct {
	Provider         string `toml:"provider,omitempty" mapstructure:"provider"`
	Target           string `toml:"target,omitempty" mapstructure:"target"`
	APIKey           string `toml:"api_key,omitempty" mapstructure:"api_key"`
	UseTLS           bool   `toml:"use_tls,omitempty" mapstructure:"use_tls"`
	Collection       string `toml:"collection,omitempty" mapstructure:"collection"`
	MemoryCollection string `toml:"memory_collection,omitempty" mapstructure:"memory_collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty" mapstructure:"provider"`
	Target     string `toml:"target,omitempty" mapstructure:"target"`
	Model      string `toml:"model,omitempty" mapstructure:"model"`
	APIKey     string `toml:"api_key,omitempty" mapstructure:"api_key"`
	Dimensions uint   `toml:"dimensions,omitempty" mapstructure:"dimensions"`
}

// RerankConfig selects the cross-encoder used after vector search.
type RerankConfig struct {
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`
	Target   string `toml:"target,omitempty" mapstructure:"target"`
	Model    string `toml:"model,omitempty" mapstructure:"model"`
	APIKey   string `toml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout  uint   `toml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// SearchConfig tunes the retrieval pipeline. Zero thresholds are disabled.
type SearchConfig struct {
	Limit          uint    `toml:"limit,omitempty" mapstructure:"limit"`
	TopN           uint    `toml:"top_n,omitempty" mapstructure:"top_n"`
	ScoreThreshold float64 `toml:"score_threshold,omitempty" mapstructure:"score_threshold"`
	MinRerankScore float64 `toml:"min_rerank_score,omitempty" mapstructure:"min_rerank_score"`
}

// LLMConfig holds the chat model settings used by every persona agent.
type LLMConfig struct {
	Provider    string  `toml:"provider,omitempty" mapstructure:"provider"`
	BaseURL     string  `toml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey      string  `toml:"api_key,omitempty" mapstructure:"api_key"`
	APIVersion  string  `toml:"api_version,omitempty" mapstructure:"api_version"`
	Model       string  `toml:"model,omitempty" mapstructure:"model"`
	Temperature float64 `toml:"temperature,omitempty" mapstructure:"temperature"`
}

// AgentConfig holds persona agent behavior.
type AgentConfig struct {
	DefaultName     string `toml:"default_name,omitempty" mapstructure:"default_name"`
	DefaultThreadID string `toml:"default_thread_id,omitempty" mapstructure:"default_thread_id"`
	HistoryMessages uint   `toml:"history_messages,omitempty" mapstructure:"history_messages"`
	MaxSteps        uint   `toml:"max_steps,omitempty" mapstructure:"max_steps"`
}

// ConversationConfig selects the conversation memory backend.
type ConversationConfig struct {
	Provider   string `toml:"provider,omitempty" mapstructure:"provider"`
	URI        string `toml:"uri,omitempty" mapstructure:"uri"`
	Database   string `toml:"database,omitempty" mapstructure:"database"`
	Collection string `toml:"collection,omitempty" mapstructure:"collection"`
	TTLHours   uint   `toml:"ttl_hours,omitempty" mapstructure:"ttl_hours"`
}

// ProfileConfig selects the relational agent profile store.
type ProfileConfig struct {
	Driver string `toml:"driver,omitempty" mapstructure:"driver"`
	DSN    string `toml:"dsn,omitempty" mapstructure:"dsn"`
	Table  string `toml:"table,omitempty" mapstructure:"table"`
}

// EventStreamConfig configures conversation turn publishing.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`
	Brokers  string `toml:"brokers,omitempty" mapstructure:"brokers"`
	Topic    string `toml:"topic,omitempty" mapstructure:"topic"`
}

// WorkerConfig sizes the async side effect pool.
type WorkerConfig struct {
	NumWorkers uint `toml:"num_workers,omitempty" mapstructure:"num_workers"`
	QueueSize  uint `toml:"queue_size,omitempty" mapstructure:"queue_size"`
}

// KnowledgeConfig configures markdown ingestion.
type KnowledgeConfig struct {
	DataPath    string  `toml:"data_path,omitempty" mapstructure:"data_path"`
	Schedule    string  `toml:"schedule,omitempty" mapstructure:"schedule"`
	Concurrency uint    `toml:"concurrency,omitempty" mapstructure:"concurrency"`
	RatePerSec  float64 `toml:"rate_per_sec,omitempty" mapstructure:"rate_per_sec"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled   bool   `toml:"enabled,omitempty" mapstructure:"enabled"`
	Token     string `toml:"token,omitempty" mapstructure:"token"`
	AgentName string `toml:"agent_name,omitempty" mapstructure:"agent_name"`
}

// MCPConfig toggles the MCP endpoint on the API server.
type MCPConfig struct {
	Enabled bool `toml:"enabled,omitempty" mapstructure:"enabled"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// orderedKeys lists every supported key in TOML section order.
var orderedKeys = []string{
	"log.level",
	"log.json",
	"log.file",
	"api.listen",
	"client.api_target",
	"client.user_id",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.api_key",
	"vector_store.use_tls",
	"vector_store.collection",
	"vector_store.memory_collection",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.api_key",
	"embedding.dimensions",
	"rerank.provider",
	"rerank.target",
	"rerank.model",
	"rerank.api_key",
	"rerank.timeout_seconds",
	"search.limit",
	"search.top_n",
	"search.score_threshold",
	"search.min_rerank_score",
	"llm.provider",
	"llm.base_url",
	"llm.api_key",
	"llm.api_version",
	"llm.model",
	"llm.temperature",
	"agent.default_name",
	"agent.default_thread_id",
	"agent.history_messages",
	"agent.max_steps",
	"conversation.provider",
	"conversation.uri",
	"conversation.database",
	"conversation.collection",
	"conversation.ttl_hours",
	"profile.driver",
	"profile.dsn",
	"profile.table",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
	"worker.num_workers",
	"worker.queue_size",
	"knowledge.data_path",
	"knowledge.schedule",
	"knowledge.concurrency",
	"knowledge.rate_per_sec",
	"telegram.enabled",
	"telegram.token",
	"telegram.agent_name",
	"mcp.enabled",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"log.level": stringKey(func(c *Config) *string { return &c.Log.Level }),
	"log.json":  boolKey("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	"log.file":  stringKey(func(c *Config) *string { return &c.Log.File }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.user_id":    stringKey(func(c *Config) *string { return &c.Client.UserID }),

	"vector_store.provider":          stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":            stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.api_key":           stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),
	"vector_store.use_tls":           boolKey("vector_store.use_tls", func(c *Config) *bool { return &c.VectorStore.UseTLS }),
	"vector_store.collection":        stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.memory_collection": stringKey(func(c *Config) *string { return &c.VectorStore.MemoryCollection }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),

	"rerank.provider":        stringKey(func(c *Config) *string { return &c.Rerank.Provider }),
	"rerank.target":          stringKey(func(c *Config) *string { return &c.Rerank.Target }),
	"rerank.model":           stringKey(func(c *Config) *string { return &c.Rerank.Model }),
	"rerank.api_key":         stringKey(func(c *Config) *string { return &c.Rerank.APIKey }),
	"rerank.timeout_seconds": uintKey("rerank.timeout_seconds", func(c *Config) *uint { return &c.Rerank.Timeout }),

	"search.limit":            uintKey("search.limit", func(c *Config) *uint { return &c.Search.Limit }),
	"search.top_n":            uintKey("search.top_n", func(c *Config) *uint { return &c.Search.TopN }),
	"search.score_threshold":  floatKey("search.score_threshold", func(c *Config) *float64 { return &c.Search.ScoreThreshold }),
	"search.min_rerank_score": floatKey("search.min_rerank_score", func(c *Config) *float64 { return &c.Search.MinRerankScore }),

	"llm.provider":    stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.base_url":    stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.api_key":     stringKey(func(c *Config) *string { return &c.LLM.APIKey }),
	"llm.api_version": stringKey(func(c *Config) *string { return &c.LLM.APIVersion }),
	"llm.model":       stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.temperature": floatKey("llm.temperature", func(c *Config) *float64 { return &c.LLM.Temperature }),

	"agent.default_name":      stringKey(func(c *Config) *string { return &c.Agent.DefaultName }),
	"agent.default_thread_id": stringKey(func(c *Config) *string { return &c.Agent.DefaultThreadID }),
	"agent.history_messages":  uintKey("agent.history_messages", func(c *Config) *uint { return &c.Agent.HistoryMessages }),
	"agent.max_steps":         uintKey("agent.max_steps", func(c *Config) *uint { return &c.Agent.MaxSteps }),

	"conversation.provider":   stringKey(func(c *Config) *string { return &c.Conversation.Provider }),
	"conversation.uri":        stringKey(func(c *Config) *string { return &c.Conversation.URI }),
	"conversation.database":   stringKey(func(c *Config) *string { return &c.Conversation.Database }),
	"conversation.collection": stringKey(func(c *Config) *string { return &c.Conversation.Collection }),
	"conversation.ttl_hours":  uintKey("conversation.ttl_hours", func(c *Config) *uint { return &c.Conversation.TTLHours }),

	"profile.driver": stringKey(func(c *Config) *string { return &c.Profile.Driver }),
	"profile.dsn":    stringKey(func(c *Config) *string { return &c.Profile.DSN }),
	"profile.table":  stringKey(func(c *Config) *string { return &c.Profile.Table }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"worker.num_workers": uintKey("worker.num_workers", func(c *Config) *uint { return &c.Worker.NumWorkers }),
	"worker.queue_size":  uintKey("worker.queue_size", func(c *Config) *uint { return &c.Worker.QueueSize }),

	"knowledge.data_path":    stringKey(func(c *Config) *string { return &c.Knowledge.DataPath }),
	"knowledge.schedule":     stringKey(func(c *Config) *string { return &c.Knowledge.Schedule }),
	"knowledge.concurrency":  uintKey("knowledge.concurrency", func(c *Config) *uint { return &c.Knowledge.Concurrency }),
	"knowledge.rate_per_sec": floatKey("knowledge.rate_per_sec", func(c *Config) *float64 { return &c.Knowledge.RatePerSec }),

	"telegram.enabled":    boolKey("telegram.enabled", func(c *Config) *bool { return &c.Telegram.Enabled }),
	"telegram.token":      stringKey(func(c *Config) *string { return &c.Telegram.Token }),
	"telegram.agent_name": stringKey(func(c *Config) *string { return &c.Telegram.AgentName }),

	"mcp.enabled": boolKey("mcp.enabled", func(c *Config) *bool { return &c.MCP.Enabled }),
}
