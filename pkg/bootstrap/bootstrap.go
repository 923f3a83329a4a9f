// Package bootstrap builds xeleb's long-lived components from a resolved
// config. Every command that talks to backends directly (serve, ingest,
// agents, conversations) goes through it so they wire the same stack.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/api"
	"github.com/xeleb-ai/xeleb/api/mcp"
	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	convutils "github.com/xeleb-ai/xeleb/pkg/conversation/utils"
	"github.com/xeleb-ai/xeleb/pkg/embeddings"
	embeddingutils "github.com/xeleb-ai/xeleb/pkg/embeddings/utils"
	"github.com/xeleb-ai/xeleb/pkg/eventstream"
	eventstreamutils "github.com/xeleb-ai/xeleb/pkg/eventstream/utils"
	"github.com/xeleb-ai/xeleb/pkg/knowledge"
	"github.com/xeleb-ai/xeleb/pkg/llm"
	llmutils "github.com/xeleb-ai/xeleb/pkg/llm/utils"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	memoryutils "github.com/xeleb-ai/xeleb/pkg/memory/utils"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	profileutils "github.com/xeleb-ai/xeleb/pkg/profile/utils"
	"github.com/xeleb-ai/xeleb/pkg/rerank"
	rerankutils "github.com/xeleb-ai/xeleb/pkg/rerank/utils"
	"github.com/xeleb-ai/xeleb/pkg/vector"
	vectorutils "github.com/xeleb-ai/xeleb/pkg/vector/utils"
	"github.com/xeleb-ai/xeleb/pkg/worker"
)

// LoadConfig resolves the effective configuration for cmd. It loads .env,
// reads config.toml from the --config-dir (or the default dot directory) and
// binds the given flag registry keys so explicitly set flags win.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Registry, flagKeys)
	return config.Resolve(v)
}

// NewLogger builds the process logger. JSON output follows log.json, pretty
// console output is used otherwise. When log.file is set records are also
// appended there; the returned closer releases it.
func NewLogger(cfg *config.Config, debug bool) (*slog.Logger, func(), error) {
	opts := []logger.Option{
		logger.WithLevel(cfg.Log.Level),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(!cfg.Log.JSON),
	}
	if debug {
		opts = append(opts, logger.WithDebug(true))
	}

	closer := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		opts = append(opts, logger.WithWriters(io.Writer(os.Stdout), f))
		closer = func() { _ = f.Close() }
	}

	return logger.New(opts...), closer, nil
}

// NewEmbedder creates the configured embedding client.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	return embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		APIVersion:   cfg.LLM.APIVersion,
		Dimensions:   cfg.Embedding.Dimensions,
	})
}

func vectorOpts(cfg *config.Config, logger *slog.Logger) vectorutils.NewVectorDriverOpts {
	return vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		APIKey:       cfg.VectorStore.APIKey,
		UseTLS:       cfg.VectorStore.UseTLS,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	}
}

// NewVectorStore connects to the knowledge collection.
func NewVectorStore(cfg *config.Config, logger *slog.Logger) (vectorutils.Store, error) {
	o := vectorOpts(cfg, logger.With("collection", cfg.VectorStore.Collection))
	return vectorutils.NewVectorDriver(&o)
}

// NewReranker creates the configured reranker.
func NewReranker(cfg *config.Config) (rerank.Reranker, error) {
	return rerankutils.NewReranker(&rerankutils.NewRerankerOpts{
		ProviderType: cfg.Rerank.Provider,
		TargetURL:    cfg.Rerank.Target,
		Model:        cfg.Rerank.Model,
		APIKey:       cfg.Rerank.APIKey,
		Timeout:      time.Duration(cfg.Rerank.Timeout) * time.Second,
	})
}

// NewIngester creates a knowledge ingester writing into driver, tuned by the
// knowledge section.
func NewIngester(cfg *config.Config, embedder embeddings.Embedder, driver vector.Driver, m *metrics.Metrics, logger *slog.Logger) *knowledge.Ingester {
	opts := []knowledge.Option{
		knowledge.WithConcurrency(int(cfg.Knowledge.Concurrency)),
		knowledge.WithRateLimit(cfg.Knowledge.RatePerSec),
	}
	if m != nil {
		opts = append(opts, knowledge.WithMetrics(m))
	}
	return knowledge.NewIngester(embedder, driver, logger.With("component", "ingest"), opts...)
}

// SearchDefaults converts the search section into Searcher defaults. Zero
// thresholds stay disabled.
func SearchDefaults(cfg *config.Config) apisearch.Options {
	o := apisearch.Options{
		Limit: int(cfg.Search.Limit),
		TopN:  int(cfg.Search.TopN),
	}
	if cfg.Search.ScoreThreshold > 0 {
		t := float32(cfg.Search.ScoreThreshold)
		o.ScoreThreshold = &t
	}
	if cfg.Search.MinRerankScore > 0 {
		m := float32(cfg.Search.MinRerankScore)
		o.MinRerankScore = &m
	}
	return o
}

// NewProfileStore opens the agent profile store. With migrate the profile
// table is created when missing.
func NewProfileStore(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (profile.Store, error) {
	return profileutils.NewProfileStore(ctx, &profileutils.NewProfileStoreOpts{
		Driver:  cfg.Profile.Driver,
		DSN:     cfg.Profile.DSN,
		Table:   cfg.Profile.Table,
		Migrate: migrate,
		Logger:  logger.With("table", cfg.Profile.Table),
	})
}

// NewConversationStore connects to the conversation memory backend.
func NewConversationStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (conversation.Store, error) {
	return convutils.NewConversationStore(ctx, &convutils.NewStoreOpts{
		ProviderType: cfg.Conversation.Provider,
		URI:          cfg.Conversation.URI,
		Database:     cfg.Conversation.Database,
		Collection:   cfg.Conversation.Collection,
		TTLHours:     cfg.Conversation.TTLHours,
		Logger:       logger.With("conversation_provider", cfg.Conversation.Provider),
	})
}

// Stack is every component the agent service depends on.
type Stack struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Embedder      embeddings.Embedder
	Vectors       vectorutils.Store
	Reranker      rerank.Reranker
	Searcher      *apisearch.Searcher
	Profiles      profile.Store
	Conversations conversation.Store
	Memory        memory.Driver
	Publisher     eventstream.Publisher
	Pool          *worker.Pool
	Service       *agent.Service

	closers []func() error
}

// Build wires the full agent stack. On failure everything opened so far is
// closed again.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	s := &Stack{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) build(ctx context.Context) error {
	cfg := s.Config

	var err error
	s.Embedder, err = NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	s.Vectors, err = NewVectorStore(cfg, s.Logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	s.closers = append(s.closers, s.Vectors.Close)

	s.Reranker, err = NewReranker(cfg)
	if err != nil {
		return fmt.Errorf("creating reranker: %w", err)
	}

	s.Searcher = apisearch.NewSearcher(s.Embedder, s.Vectors, s.Reranker, s.Logger,
		apisearch.WithDefaults(SearchDefaults(cfg)),
		apisearch.WithMetrics(s.Metrics),
	)

	s.Profiles, err = NewProfileStore(ctx, cfg, true, s.Logger)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	s.closers = append(s.closers, s.Profiles.Close)

	s.Conversations, err = NewConversationStore(ctx, cfg, s.Logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	s.closers = append(s.closers, s.Conversations.Close)

	s.Memory, err = memoryutils.NewMemoryDriver(ctx, &memoryutils.NewMemoryDriverOpts{
		Vector:           vectorOpts(cfg, s.Logger),
		MemoryCollection: cfg.VectorStore.MemoryCollection,
		Embedder:         s.Embedder,
		Logger:           s.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating memory driver: %w", err)
	}
	s.closers = append(s.closers, s.Memory.Close)

	s.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
		Logger:       s.Logger.With("eventstream", cfg.EventStream.Provider),
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	s.closers = append(s.closers, s.Publisher.Close)

	// The pool drains before the publisher and memory driver it feeds are
	// closed, so it is registered after them.
	s.Pool, err = worker.NewPool(&worker.Config{
		Publisher:  s.Publisher,
		Memory:     s.Memory,
		NumWorkers: cfg.Worker.NumWorkers,
		QueueSize:  cfg.Worker.QueueSize,
		Metrics:    s.Metrics,
		Logger:     s.Logger.With("component", "worker"),
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	s.closers = append(s.closers, func() error { s.Pool.Close(); return nil })

	chat, err := llmutils.NewChatModel(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		APIVersion:  cfg.LLM.APIVersion,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
	}, s.Logger)
	if err != nil {
		return fmt.Errorf("creating chat model: %w", err)
	}

	manager := agent.NewManager(agent.ManagerConfig{
		Model:       chat,
		Retriever:   s.Searcher,
		Profiles:    s.Profiles,
		DefaultName: cfg.Agent.DefaultName,
		MaxSteps:    int(cfg.Agent.MaxSteps),
		Metrics:     s.Metrics,
		Logger:      s.Logger.With("component", "agent"),
	})

	s.Service = agent.NewService(agent.ServiceConfig{
		Agents:          manager,
		Conversations:   s.Conversations,
		Sink:            s.Pool,
		Memory:          s.Memory,
		DefaultThreadID: cfg.Agent.DefaultThreadID,
		DefaultAgent:    cfg.Agent.DefaultName,
		HistoryMessages: int(cfg.Agent.HistoryMessages),
		Channel:         "api",
		Logger:          s.Logger,
	})
	return nil
}

// Close releases components in reverse order of creation.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewAPIServer builds the HTTP API over the stack. The MCP endpoint is
// mounted when mcp.enabled is set.
func (s *Stack) NewAPIServer() (*api.Server, error) {
	var mcpHandler http.Handler
	if s.Config.MCP.Enabled {
		server, err := mcp.NewServer(mcp.Config{
			Searcher: s.Searcher,
			Profiles: s.Profiles,
			Memory:   s.Memory,
			Logger:   s.Logger.With("component", "mcp"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		mcpHandler = server.Handler()
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: s.Config.API.Listen,
		Service:    s.Service,
		Profiles:   s.Profiles,
		Searcher:   s.Searcher,
		Collection: s.Vectors,
		Metrics:    s.Metrics,
		MCP:        mcpHandler,
	}, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	return server, nil
}
