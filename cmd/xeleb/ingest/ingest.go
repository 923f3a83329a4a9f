// Package ingestcmder provides the ingest command that embeds markdown
// knowledge files into the vector store.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/knowledge"
)

type ingestCommander struct {
	cfg    *config.Config
	debug  bool
	watch  bool
	logger *slog.Logger

	dataPath   string
	collection string
	provider   string
	target     string
}

var ingestFlags = []string{
	config.FlagKnowledgePath,
	config.FlagCollection,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
}

const ingestLongDesc string = `Embed markdown knowledge files into the vector store.

Every *.md file directly inside the directory is converted to plain text,
embedded and upserted under an id derived from its file name, so re-running
the command updates documents in place. The directory defaults to
knowledge.data_path.

With --watch the command keeps running and re-ingests files as they are
written, and removes documents whose files are deleted.

Examples:
  xeleb ingest
  xeleb ingest ./dataset/markdown_files --collection knowledgebase
  xeleb ingest --watch`

const ingestShortDesc string = "Embed markdown knowledge into the vector store"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, ingestFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			dir := cmder.cfg.Knowledge.DataPath
			if len(args) == 1 {
				dir = args[0]
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagKnowledgePath, &cmder.dataPath)
	config.AddStringFlag(cmd, config.Registry, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Registry, config.FlagVectorStoreTgt, &cmder.target)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep watching the directory and re-ingest changed files")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, out io.Writer, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeLog func()
	var err error
	c.logger, closeLog, err = bootstrap.NewLogger(c.cfg, c.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	embedder, err := bootstrap.NewEmbedder(c.cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := bootstrap.NewVectorStore(c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection %s: %w", c.cfg.VectorStore.Collection, err)
	}

	ingester := bootstrap.NewIngester(c.cfg, embedder, store, nil, c.logger)

	var report *knowledge.Report
	err = cliui.Step(out, fmt.Sprintf("Ingesting %s", dir), func() error {
		var stepErr error
		report, stepErr = ingester.IngestDirectory(ctx, dir)
		return stepErr
	})
	if err != nil {
		return err
	}

	printReport(out, report)

	if c.watch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("Watching for changes. Ctrl+C to stop."))
		return knowledge.NewWatcher(dir, ingester, 0, c.logger).Run(ctx)
	}

	if !report.OK() {
		return errors.New("some knowledge files failed to ingest")
	}
	return nil
}

func printReport(out io.Writer, report *knowledge.Report) {
	for _, f := range report.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(out, "  %s %s %s\n", cliui.FailMark, f.Filename, cliui.ErrorStyle.Render(f.Error))
		case f.Skipped:
			fmt.Fprintf(out, "  %s %s %s\n", cliui.DimStyle.Render("-"), f.Filename, cliui.DimStyle.Render("(empty, skipped)"))
		default:
			fmt.Fprintf(out, "  %s %s %s\n", cliui.SuccessMark, f.Filename, cliui.DimStyle.Render(fmt.Sprintf("id %d", f.ID)))
		}
	}

	fmt.Fprintf(out, "\n  %s %d stored, %d skipped, %d failed\n",
		cliui.HeaderStyle.Render("Done:"),
		report.Succeeded, report.Skipped, report.Failed,
	)
}
