package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/xeleb-ai/xeleb/pkg/vector"
	"github.com/xeleb-ai/xeleb/pkg/vector/chroma"
	"github.com/xeleb-ai/xeleb/pkg/vector/qdrant"
	"github.com/xeleb-ai/xeleb/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	Target       string
	APIKey       string
	UseTLS       bool
	Collection   string
	Dimensions   uint
	Logger       *slog.Logger
}

// Store is a vector driver that also manages its collection. Every provider
// returned by NewVectorDriver satisfies it.
type Store interface {
	vector.Driver
	vector.CollectionManager
}

func NewVectorDriver(o *NewVectorDriverOpts) (Store, error) {
	switch o.ProviderType {
	case "qdrant", "":
		return qdrant.NewDriver(qdrant.Config{
			Target:     o.Target,
			APIKey:     o.APIKey,
			UseTLS:     o.UseTLS,
			Collection: o.Collection,
			Dimensions: uint64(o.Dimensions),
		}, o.Logger)
	case "sqlite", "sqlitevec", "sqlite-vec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
