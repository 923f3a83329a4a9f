package agentscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

var errNoAdmin = errors.New("the configured profile store has no table to manage")

func admin(store profile.Store) (profile.Admin, error) {
	a, ok := store.(profile.Admin)
	if !ok {
		return nil, errNoAdmin
	}
	return a, nil
}

func (c *agentsCommander) adminCmd(use, short string, args cobra.PositionalArgs, fn func(ctx context.Context, out io.Writer, a profile.Admin, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return c.withStore(cmd, false, func(ctx context.Context, out io.Writer, store profile.Store, _ *slog.Logger) error {
				a, err := admin(store)
				if err != nil {
					return err
				}
				return fn(ctx, out, a, cmdArgs)
			})
		},
	}
}

func (c *agentsCommander) newMigrateCmd() *cobra.Command {
	return c.adminCmd("migrate", "Create the profile table when missing", cobra.NoArgs,
		func(ctx context.Context, out io.Writer, a profile.Admin, _ []string) error {
			return cliui.Step(out, fmt.Sprintf("Migrating %s", c.cfg.Profile.Table), func() error {
				return a.Migrate(ctx)
			})
		})
}

func (c *agentsCommander) newTablesCmd() *cobra.Command {
	return c.adminCmd("tables", "List tables in the profile database", cobra.NoArgs,
		func(ctx context.Context, out io.Writer, a profile.Admin, _ []string) error {
			tables, err := a.Tables(ctx)
			if err != nil {
				return err
			}
			if len(tables) == 0 {
				fmt.Fprintln(out, "No tables found.")
				return nil
			}
			for _, t := range tables {
				fmt.Fprintf(out, "  %s\n", t)
			}
			return nil
		})
}

func (c *agentsCommander) newRunSQLCmd() *cobra.Command {
	return c.adminCmd("run-sql <file>", "Run a .sql script against the profile database", cobra.ExactArgs(1),
		func(ctx context.Context, out io.Writer, a profile.Admin, args []string) error {
			n, err := a.RunScript(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s Executed %d statements from %s\n", cliui.SuccessMark, n, args[0])
			return nil
		})
}

func (c *agentsCommander) newClearCmd() *cobra.Command {
	var yes, drop bool

	cmd := c.adminCmd("clear", "Delete every agent profile", cobra.NoArgs,
		func(ctx context.Context, out io.Writer, a profile.Admin, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear %s without --yes", c.cfg.Profile.Table)
			}
			if drop {
				return cliui.Step(out, fmt.Sprintf("Dropping %s", c.cfg.Profile.Table), func() error {
					return a.DropTable(ctx)
				})
			}
			return cliui.Step(out, fmt.Sprintf("Clearing %s", c.cfg.Profile.Table), func() error {
				return a.ClearTable(ctx)
			})
		})

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deleting every profile")
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop the table instead of emptying it")

	return cmd
}
