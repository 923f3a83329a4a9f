package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --api-target on "xeleb chat" and "xeleb search") cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "api-target").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.api_target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagAPIListen       = "api-listen"
	FlagAPITarget       = "api-target"
	FlagUserID          = "user-id"
	FlagAgentName       = "agent"
	FlagThreadID        = "thread"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagCollection      = "collection"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagRerankProv      = "rerank-provider"
	FlagRerankTgt       = "rerank-target"
	FlagSearchLimit     = "limit"
	FlagSearchTopN      = "top-n"
	FlagLLMModel        = "model"
	FlagLLMBaseURL      = "llm-base-url"
	FlagConversationPrv = "conversation-provider"
	FlagConversationURI = "conversation-uri"
	FlagProfileDriver   = "profile-driver"
	FlagProfileDSN      = "profile-dsn"
	FlagProfileTable    = "profile-table"
	FlagKnowledgePath   = "data-path"
	FlagSchedule        = "schedule"
	FlagTelegram        = "telegram"
	FlagMCP             = "mcp"
	FlagLogJSON         = "log-json"
)

// Registry holds the flag definitions shared by every xeleb command.
var Registry = FlagSet{
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:       {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "xeleb API server URL"},
	FlagUserID:          {Name: "user-id", ViperKey: "client.user_id", Description: "User id sent with chat questions"},
	FlagAgentName:       {Name: "agent", ViperKey: "agent.default_name", Description: "Persona agent name"},
	FlagThreadID:        {Name: "thread", ViperKey: "agent.default_thread_id", Description: "Conversation thread id"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (qdrant, sqlite, chroma)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store address, URL or file path"},
	FlagCollection:      {Name: "collection", Shorthand: "c", ViperKey: "vector_store.collection", Description: "Knowledge collection name"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagRerankProv:      {Name: "rerank-provider", ViperKey: "rerank.provider", Description: "Reranker (crossencoder, none)"},
	FlagRerankTgt:       {Name: "rerank-target", ViperKey: "rerank.target", Description: "Cross-encoder rerank service URL"},
	FlagSearchLimit:     {Name: "limit", ViperKey: "search.limit", Description: "Vector search candidates before reranking"},
	FlagSearchTopN:      {Name: "top-n", Shorthand: "k", ViperKey: "search.top_n", Description: "Passages kept after reranking"},
	FlagLLMModel:        {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Chat model name"},
	FlagLLMBaseURL:      {Name: "llm-base-url", ViperKey: "llm.base_url", Description: "OpenAI compatible chat API base URL"},
	FlagConversationPrv: {Name: "conversation-provider", ViperKey: "conversation.provider", Description: "Conversation store (mongo, redis, memory)"},
	FlagConversationURI: {Name: "conversation-uri", ViperKey: "conversation.uri", Description: "Conversation store connection URI"},
	FlagProfileDriver:   {Name: "profile-driver", ViperKey: "profile.driver", Description: "Agent profile database (mysql, postgres, sqlite)"},
	FlagProfileDSN:      {Name: "profile-dsn", ViperKey: "profile.dsn", Description: "Agent profile database DSN"},
	FlagProfileTable:    {Name: "profile-table", ViperKey: "profile.table", Description: "Agent profile table name"},
	FlagKnowledgePath:   {Name: "data-path", ViperKey: "knowledge.data_path", Description: "Directory of markdown knowledge files"},
	FlagSchedule:        {Name: "schedule", ViperKey: "knowledge.schedule", Description: "Cron schedule for re-ingesting knowledge"},
	FlagTelegram:        {Name: "telegram", ViperKey: "telegram.enabled", Description: "Run the Telegram channel"},
	FlagMCP:             {Name: "mcp", ViperKey: "mcp.enabled", Description: "Serve the MCP endpoint"},
	FlagLogJSON:         {Name: "log-json", ViperKey: "log.json", Description: "Write JSON logs"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultsViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	return defaultsViper().GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	return defaultsViper().GetUint(viperKey)
}

func defaultBool(viperKey string) bool {
	return defaultsViper().GetBool(viperKey)
}
