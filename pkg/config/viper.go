package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xeleb-ai/xeleb/pkg/dotdir"
)

const envPrefix = "XELEB"

// envAliases binds the unprefixed variable names used by existing .env
// deployments to their config keys. The XELEB_ name always wins.
var envAliases = map[string][]string{
	"conversation.uri":               {"MONGODB_URI", "MONGODB_URL"},
	"conversation.database":          {"MONGODB_DB_NAME"},
	"conversation.collection":        {"MONGODB_COLLECTION_NAME"},
	"vector_store.target":            {"QDRANT_URL"},
	"vector_store.api_key":           {"QDRANT_API_KEY", "API_KEY_QDRANT"},
	"vector_store.collection":        {"QDRANT_COLLECTION_NAME", "COLLECTION_NAME"},
	"vector_store.memory_collection": {"COLLECTION_NAME_MEM"},
	"embedding.model":                {"EMBEDDING_MODEL"},
	"llm.model":                      {"MODEL_NAME"},
	"llm.api_key":                    {"OPENAI_API_KEY"},
	"llm.base_url":                   {"AZURE_ENDPOINT", "OPENAI_BASE_URL"},
	"llm.api_version":                {"API_VERSION"},
	"profile.table":                  {"TABLE_NAME"},
	"knowledge.data_path":            {"DATA_PATH"},
	"telegram.token":                 {"TELEGRAM_BOT_TOKEN"},
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (XELEB_API_LISTEN, MONGODB_URI, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	return v, nil
}

// Resolve decodes the effective configuration out of v.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("api.listen", d.API.Listen)

	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("client.user_id", d.Client.UserID)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)
	v.SetDefault("vector_store.use_tls", d.VectorStore.UseTLS)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.memory_collection", d.VectorStore.MemoryCollection)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("rerank.provider", d.Rerank.Provider)
	v.SetDefault("rerank.target", d.Rerank.Target)
	v.SetDefault("rerank.model", d.Rerank.Model)
	v.SetDefault("rerank.api_key", d.Rerank.APIKey)
	v.SetDefault("rerank.timeout_seconds", d.Rerank.Timeout)

	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.top_n", d.Search.TopN)
	v.SetDefault("search.score_threshold", d.Search.ScoreThreshold)
	v.SetDefault("search.min_rerank_score", d.Search.MinRerankScore)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.api_version", d.LLM.APIVersion)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)

	v.SetDefault("agent.default_name", d.Agent.DefaultName)
	v.SetDefault("agent.default_thread_id", d.Agent.DefaultThreadID)
	v.SetDefault("agent.history_messages", d.Agent.HistoryMessages)
	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)

	v.SetDefault("conversation.provider", d.Conversation.Provider)
	v.SetDefault("conversation.uri", d.Conversation.URI)
	v.SetDefault("conversation.database", d.Conversation.Database)
	v.SetDefault("conversation.collection", d.Conversation.Collection)
	v.SetDefault("conversation.ttl_hours", d.Conversation.TTLHours)

	v.SetDefault("profile.driver", d.Profile.Driver)
	v.SetDefault("profile.dsn", d.Profile.DSN)
	v.SetDefault("profile.table", d.Profile.Table)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	v.SetDefault("worker.num_workers", d.Worker.NumWorkers)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)

	v.SetDefault("knowledge.data_path", d.Knowledge.DataPath)
	v.SetDefault("knowledge.schedule", d.Knowledge.Schedule)
	v.SetDefault("knowledge.concurrency", d.Knowledge.Concurrency)
	v.SetDefault("knowledge.rate_per_sec", d.Knowledge.RatePerSec)

	v.SetDefault("telegram.enabled", d.Telegram.Enabled)
	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.agent_name", d.Telegram.AgentName)

	v.SetDefault("mcp.enabled", d.MCP.Enabled)
}
