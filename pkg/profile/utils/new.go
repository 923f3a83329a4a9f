package utils

import (
	"context"
	"log/slog"

	"github.com/xeleb-ai/xeleb/pkg/profile"
	"github.com/xeleb-ai/xeleb/pkg/profile/inmemory"
	"github.com/xeleb-ai/xeleb/pkg/profile/sqlstore"
)

// NewProfileStoreOpts selects and configures a profile backend.
type NewProfileStoreOpts struct {
	// Driver is mysql, postgres, sqlite or memory.
	Driver string
	DSN    string
	Table  string

	// Migrate creates the table when it does not exist.
	Migrate bool

	Logger *slog.Logger
}

// NewProfileStore opens the configured profile store.
func NewProfileStore(ctx context.Context, opts *NewProfileStoreOpts) (profile.Store, error) {
	if opts.Driver == "memory" || opts.Driver == "inmemory" {
		return inmemory.NewStore(), nil
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: opts.Driver,
		DSN:    opts.DSN,
		Table:  opts.Table,
	}, opts.Logger)
	if err != nil {
		return nil, err
	}

	if opts.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
