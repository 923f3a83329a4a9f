package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/conversation/inmemory"
	"github.com/xeleb-ai/xeleb/pkg/conversation/mongo"
	"github.com/xeleb-ai/xeleb/pkg/conversation/redis"
)

// NewStoreOpts selects and configures a conversation backend.
type NewStoreOpts struct {
	ProviderType string
	URI          string
	Database     string
	Collection   string
	TTLHours     uint
	Logger       *slog.Logger
}

// NewConversationStore creates the configured backend. mongo is the default.
func NewConversationStore(ctx context.Context, opts *NewStoreOpts) (conversation.Store, error) {
	switch opts.ProviderType {
	case "mongo", "mongodb", "":
		return mongo.NewStore(ctx, mongo.Config{
			URI:        opts.URI,
			Database:   opts.Database,
			Collection: opts.Collection,
		}, opts.Logger)
	case "redis":
		return redis.NewStore(ctx, redis.Config{
			URL:    opts.URI,
			TTL:    time.Duration(opts.TTLHours) * time.Hour,
			Prefix: opts.Collection,
		}, opts.Logger)
	case "memory", "inmemory":
		return inmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported conversation provider: %s", opts.ProviderType)
	}
}
