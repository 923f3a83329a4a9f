package config

const (
	defaultLogLevel  = "info"
	defaultAPIListen = ":7888"

	defaultClientAPITarget = "http://localhost:7888"
	defaultClientUserID    = "cli"

	defaultVectorProvider   = "qdrant"
	defaultVectorTarget     = "localhost:6334"
	defaultVectorCollection = "knowledgebase"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultRerankProvider = "crossencoder"
	defaultRerankTarget   = "http://localhost:8787"
	defaultRerankModel    = "ms-marco-MiniLM-L-12-v2"
	defaultRerankTimeout  = 10

	defaultSearchLimit = 7
	defaultSearchTopN  = 5

	defaultLLMProvider    = "openai"
	defaultLLMModel       = "gpt-4o-mini"
	defaultLLMTemperature = 0.9

	defaultAgentName       = "MISS CHINA AI"
	defaultThreadID        = "1234"
	defaultHistoryMessages = 2
	defaultMaxSteps        = 12

	defaultConversationProvider   = "mongo"
	defaultConversationURI        = "mongodb://localhost:27017"
	defaultConversationDatabase   = "xeleb"
	defaultConversationCollection = "conversations"

	defaultProfileDriver = "mysql"
	defaultProfileTable  = "agent_profiles"

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "xeleb.conversation.turns"

	defaultNumWorkers = 3
	defaultQueueSize  = 256

	defaultKnowledgePath        = "./dataset/markdown_files"
	defaultKnowledgeConcurrency = 4
	defaultKnowledgeRate        = 5
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Log: LogConfig{
			Level: defaultLogLevel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			UserID:    defaultClientUserID,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Rerank: RerankConfig{
			Provider: defaultRerankProvider,
			Target:   defaultRerankTarget,
			Model:    defaultRerankModel,
			Timeout:  defaultRerankTimeout,
		},
		Search: SearchConfig{
			Limit: defaultSearchLimit,
			TopN:  defaultSearchTopN,
		},
		LLM: LLMConfig{
			Provider:    defaultLLMProvider,
			Model:       defaultLLMModel,
			Temperature: defaultLLMTemperature,
		},
		Agent: AgentConfig{
			DefaultName:     defaultAgentName,
			DefaultThreadID: defaultThreadID,
			HistoryMessages: defaultHistoryMessages,
			MaxSteps:        defaultMaxSteps,
		},
		Conversation: ConversationConfig{
			Provider:   defaultConversationProvider,
			URI:        defaultConversationURI,
			Database:   defaultConversationDatabase,
			Collection: defaultConversationCollection,
		},
		Profile: ProfileConfig{
			Driver: defaultProfileDriver,
			Table:  defaultProfileTable,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Worker: WorkerConfig{
			NumWorkers: defaultNumWorkers,
			QueueSize:  defaultQueueSize,
		},
		Knowledge: KnowledgeConfig{
			DataPath:    defaultKnowledgePath,
			Concurrency: defaultKnowledgeConcurrency,
			RatePerSec:  defaultKnowledgeRate,
		},
	}
}
