// Package collectioncmder provides the collection command for managing the
// knowledge collection in the vector store.
package collectioncmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
	vectorutils "github.com/xeleb-ai/xeleb/pkg/vector/utils"
)

const collectionLongDesc string = `Manage the knowledge collection in the configured vector store.

  xeleb collection create   Create the collection (fails if it exists)
  xeleb collection info     Show vector size, distance and point count
  xeleb collection drop     Delete the collection and every document in it

Examples:
  xeleb collection create --collection knowledgebase
  xeleb collection info
  xeleb collection drop --yes`

const collectionShortDesc string = "Manage the knowledge collection"

var collectionFlags = []string{
	config.FlagCollection,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingDims,
}

type collectionCommander struct {
	cfg *config.Config

	collection string
	provider   string
	target     string
	dimensions uint
}

func NewCollectionCmd() *cobra.Command {
	cmder := &collectionCommander{}

	cmd := &cobra.Command{
		Use:   "collection",
		Short: collectionShortDesc,
		Long:  collectionLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, collectionFlags...)
			return err
		},
	}

	cmd.AddCommand(cmder.addFlags(&cobra.Command{
		Use:   "create",
		Short: "Create the knowledge collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, out io.Writer, store vectorutils.Store) error {
				return cliui.Step(out, fmt.Sprintf("Creating collection %s", cmder.cfg.VectorStore.Collection), func() error {
					return store.CreateCollection(ctx)
				})
			})
		},
	}))

	cmd.AddCommand(cmder.addFlags(&cobra.Command{
		Use:   "info",
		Short: "Show knowledge collection details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, out io.Writer, store vectorutils.Store) error {
				info, err := store.CollectionInfo(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				cliui.KeyValue(out, 12, "name", info.Name)
				cliui.KeyValue(out, 12, "vector_size", fmt.Sprintf("%d", info.VectorSize))
				cliui.KeyValue(out, 12, "distance", info.Distance)
				cliui.KeyValue(out, 12, "points", fmt.Sprintf("%d", info.PointsCount))
				cliui.KeyValue(out, 12, "status", info.Status)
				fmt.Fprintln(out)
				return nil
			})
		},
	}))

	var yes bool
	drop := cmder.addFlags(&cobra.Command{
		Use:   "drop",
		Short: "Delete the knowledge collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop %s without --yes", cmder.cfg.VectorStore.Collection)
			}
			return cmder.withStore(cmd, func(ctx context.Context, out io.Writer, store vectorutils.Store) error {
				return cliui.Step(out, fmt.Sprintf("Dropping collection %s", cmder.cfg.VectorStore.Collection), func() error {
					return store.DropCollection(ctx)
				})
			})
		},
	})
	drop.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm dropping the collection")
	cmd.AddCommand(drop)

	return cmd
}

// addFlags registers the vector store flags on a subcommand.
func (c *collectionCommander) addFlags(cmd *cobra.Command) *cobra.Command {
	config.AddStringFlag(cmd, config.Registry, config.FlagCollection, &c.collection)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &c.provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &c.target)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &c.dimensions)
	return cmd
}

func (c *collectionCommander) withStore(cmd *cobra.Command, fn func(ctx context.Context, out io.Writer, store vectorutils.Store) error) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log, closeLog, err := bootstrap.NewLogger(c.cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := bootstrap.NewVectorStore(c.cfg, log)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer store.Close()

	return fn(cmd.Context(), cmd.OutOrStdout(), store)
}
