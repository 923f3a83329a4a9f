// Package agentscmder provides the agents command for managing agent
// profiles in the relational profile store.
package agentscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/persona"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

const agentsLongDesc string = `Manage agent profiles stored in the profile database.

  xeleb agents import <dir>     Insert every *.json profile in dir
  xeleb agents list             List profiles by popularity
  xeleb agents show <name>      Show one profile and its system prompt
  xeleb agents delete <id>      Delete a profile by id
  xeleb agents migrate          Create the profile table
  xeleb agents tables           List tables in the profile database
  xeleb agents run-sql <file>   Run a .sql script in one transaction
  xeleb agents clear            Delete every profile row

Examples:
  xeleb agents import ./dataset/agents
  xeleb agents show "MISS CHINA AI" --prompt
  xeleb agents list --profile-driver sqlite --profile-dsn ./profiles.sqlite`

const agentsShortDesc string = "Manage agent profiles"

var agentsFlags = []string{
	config.FlagProfileDriver,
	config.FlagProfileDSN,
	config.FlagProfileTable,
}

type agentsCommander struct {
	cfg *config.Config

	driver string
	dsn    string
	table  string
}

func NewAgentsCmd() *cobra.Command {
	cmder := &agentsCommander{}

	cmd := &cobra.Command{
		Use:   "agents",
		Short: agentsShortDesc,
		Long:  agentsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, agentsFlags...)
			return err
		},
	}

	cmd.AddCommand(cmder.addFlags(cmder.newImportCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newListCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newShowCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newDeleteCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newMigrateCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newTablesCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newRunSQLCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newClearCmd()))

	return cmd
}

func (c *agentsCommander) addFlags(cmd *cobra.Command) *cobra.Command {
	config.AddStringFlag(cmd, config.Registry, config.FlagProfileDriver, &c.driver)
	config.AddStringFlag(cmd, config.Registry, config.FlagProfileDSN, &c.dsn)
	config.AddStringFlag(cmd, config.Registry, config.FlagProfileTable, &c.table)
	return cmd
}

type storeFunc func(ctx context.Context, out io.Writer, store profile.Store, logger *slog.Logger) error

// withStore opens the profile store for the duration of fn. Only import
// creates the table on the fly; the other commands expect it to exist.
func (c *agentsCommander) withStore(cmd *cobra.Command, migrate bool, fn storeFunc) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log, closeLog, err := bootstrap.NewLogger(c.cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := bootstrap.NewProfileStore(cmd.Context(), c.cfg, migrate, log)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	defer store.Close()

	return fn(cmd.Context(), cmd.OutOrStdout(), store, log)
}

func (c *agentsCommander) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Insert every JSON profile in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, true, func(ctx context.Context, out io.Writer, store profile.Store, log *slog.Logger) error {
				report, err := profile.InsertFromDir(ctx, store, args[0], log)
				if err != nil {
					return err
				}

				for _, r := range report.Results {
					if r.Error != "" {
						fmt.Fprintf(out, "  %s %s %s\n", cliui.FailMark, r.File, cliui.ErrorStyle.Render(r.Error))
						continue
					}
					fmt.Fprintf(out, "  %s %s %s\n", cliui.SuccessMark, r.File,
						cliui.DimStyle.Render(fmt.Sprintf("%s (id %d)", r.AgentName, r.AgentID)))
				}
				fmt.Fprintf(out, "\n  %s %d inserted, %d failed\n", cliui.HeaderStyle.Render("Done:"), report.Inserted, report.Failed)

				if report.Failed > 0 {
					return fmt.Errorf("%d profile files failed to import", report.Failed)
				}
				return nil
			})
		},
	}
}

func (c *agentsCommander) newListCmd() *cobra.Command {
	var (
		asJSON bool
		topic  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agent profiles by popularity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd, false, func(ctx context.Context, out io.Writer, store profile.Store, _ *slog.Logger) error {
				page, err := store.Paginate(ctx, profile.PageQuery{Topic: topic})
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(out, page.Profiles)
				}

				if len(page.Profiles) == 0 {
					fmt.Fprintln(out, "No agent profiles found.")
					return nil
				}

				fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("%d agent profiles", len(page.Profiles))))
				for _, p := range page.Profiles {
					fmt.Fprintf(out, "  %s  %s  %s  %s\n",
						cliui.DimStyle.Render(fmt.Sprintf("%4d", p.AgentID)),
						cliui.NameStyle.Render(p.Name()),
						cliui.ValueStyle.Render(p.Symbol),
						cliui.DimStyle.Render(strings.Join(p.Behavior.Topic, ", ")),
					)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print profiles as JSON")
	cmd.Flags().StringVar(&topic, "topic", "", "Only list agents whose topics contain this text")

	return cmd
}

func (c *agentsCommander) newShowCmd() *cobra.Command {
	var prompt bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one agent profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, false, func(ctx context.Context, out io.Writer, store profile.Store, _ *slog.Logger) error {
				p, err := store.FindOne(ctx, profile.FieldAgentName, args[0])
				if err != nil {
					return err
				}

				if !prompt {
					return writeJSON(out, p)
				}

				rendered, err := cliui.RenderMarkdown(persona.SystemPrompt(p))
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&prompt, "prompt", false, "Render the system prompt built from the profile")

	return cmd
}

func (c *agentsCommander) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an agent profile by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid agent id %q", args[0])
			}

			return c.withStore(cmd, false, func(ctx context.Context, out io.Writer, store profile.Store, _ *slog.Logger) error {
				deleted, err := store.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("agent %d: %w", id, profile.ErrNotFound)
				}
				fmt.Fprintf(out, "  %s Deleted agent %d\n", cliui.SuccessMark, id)
				return nil
			})
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
