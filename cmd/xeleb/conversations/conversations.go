// Package conversationscmder provides the conversations command for
// exporting and clearing conversation memory.
package conversationscmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

const conversationsLongDesc string = `Export or clear conversation memory.

  xeleb conversations export    Write a plain text transcript of every conversation
  xeleb conversations clear     Delete one thread, or everything with --all

Examples:
  xeleb conversations export --last 10 --output transcripts.txt
  xeleb conversations clear --user-id 42 --thread 1234
  xeleb conversations clear --all --yes`

const conversationsShortDesc string = "Export or clear conversation memory"

var conversationsFlags = []string{
	config.FlagConversationPrv,
	config.FlagConversationURI,
}

type conversationsCommander struct {
	cfg *config.Config

	provider string
	uri      string
}

func NewConversationsCmd() *cobra.Command {
	cmder := &conversationsCommander{}

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: conversationsShortDesc,
		Long:  conversationsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, conversationsFlags...)
			return err
		},
	}

	cmd.AddCommand(cmder.addFlags(cmder.newExportCmd()))
	cmd.AddCommand(cmder.addFlags(cmder.newClearCmd()))

	return cmd
}

func (c *conversationsCommander) addFlags(cmd *cobra.Command) *cobra.Command {
	config.AddStringFlag(cmd, config.Registry, config.FlagConversationPrv, &c.provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagConversationURI, &c.uri)
	return cmd
}

func (c *conversationsCommander) withStore(cmd *cobra.Command, fn func(ctx context.Context, out io.Writer, store conversation.Store) error) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log, closeLog, err := bootstrap.NewLogger(c.cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := bootstrap.NewConversationStore(cmd.Context(), c.cfg, log)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer store.Close()

	return fn(cmd.Context(), cmd.OutOrStdout(), store)
}

func (c *conversationsCommander) newExportCmd() *cobra.Command {
	var (
		lastN  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a transcript of every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd, func(ctx context.Context, out io.Writer, store conversation.Store) error {
				convs, err := store.List(ctx)
				if err != nil {
					return err
				}

				w := out
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating transcript file: %w", err)
					}
					defer f.Close()
					w = f
				}

				if err := conversation.ExportTranscript(w, convs, lastN); err != nil {
					return err
				}

				if output != "" {
					fmt.Fprintf(out, "  %s Exported %d conversations to %s\n", cliui.SuccessMark, len(convs), output)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&lastN, "last", "n", 0, "Only include the last n messages of each conversation (0 for all)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the transcript to a file instead of stdout")

	return cmd
}

func (c *conversationsCommander) newClearCmd() *cobra.Command {
	var (
		userID   string
		threadID string
		all      bool
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a conversation thread or every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all && !yes {
				return fmt.Errorf("refusing to clear every conversation without --yes")
			}
			if !all && userID == "" {
				return fmt.Errorf("--user-id is required unless --all is set")
			}

			return c.withStore(cmd, func(ctx context.Context, out io.Writer, store conversation.Store) error {
				if all {
					return cliui.Step(out, "Clearing every conversation", func() error {
						return store.ClearAll(ctx)
					})
				}

				thread := threadID
				if thread == "" {
					thread = c.cfg.Agent.DefaultThreadID
				}
				existed, err := store.Clear(ctx, userID, thread)
				if err != nil {
					return err
				}
				if !existed {
					fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("No conversation for user %s thread %s.", userID, thread)))
					return nil
				}
				fmt.Fprintf(out, "  %s Cleared user %s thread %s\n", cliui.SuccessMark, userID, thread)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "User whose thread is cleared")
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread to clear (defaults to agent.default_thread_id)")
	cmd.Flags().BoolVar(&all, "all", false, "Clear every conversation")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing every conversation")

	return cmd
}
