// Package memoryutils is the memory utility package
package memoryutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xeleb-ai/xeleb/pkg/embeddings"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/memory/local"
	"github.com/xeleb-ai/xeleb/pkg/memory/semantic"
	vectorutils "github.com/xeleb-ai/xeleb/pkg/vector/utils"
)

type NewMemoryDriverOpts struct {
	// Vector describes the vector store. Its Collection is replaced by
	// MemoryCollection.
	Vector           vectorutils.NewVectorDriverOpts
	MemoryCollection string
	Embedder         embeddings.Embedder
	Logger           *slog.Logger
}

// NewMemoryDriver returns the semantic driver on MemoryCollection, or the
// local driver when no memory collection is configured.
func NewMemoryDriver(ctx context.Context, o *NewMemoryDriverOpts) (memory.Driver, error) {
	if o.MemoryCollection == "" {
		return local.NewDriver(local.Config{Enabled: true}), nil
	}

	vo := o.Vector
	vo.Collection = o.MemoryCollection
	vo.Logger = o.Logger
	store, err := vectorutils.NewVectorDriver(&vo)
	if err != nil {
		return nil, fmt.Errorf("creating memory vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensuring memory collection %s: %w", o.MemoryCollection, err)
	}

	return semantic.NewDriver(o.Embedder, store, o.Logger.With("memory_collection", o.MemoryCollection))
}
