// Package convertcmder provides the convert command that turns PDF documents
// into markdown knowledge files.
package convertcmder

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/knowledge/pdf"
	"github.com/xeleb-ai/xeleb/pkg/logger"
)

const convertLongDesc string = `Convert every PDF in a directory into markdown.

Each <name>.pdf inside pdf-dir becomes <name>.md inside md-dir with one
section per page. The markdown directory can then be embedded with
"xeleb ingest".

Examples:
  xeleb convert ./dataset/pdf_files ./dataset/markdown_files`

const convertShortDesc string = "Convert PDF documents into markdown knowledge files"

func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <pdf-dir> <md-dir>",
		Short: convertShortDesc,
		Long:  convertLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return runConvert(cmd, cmd.OutOrStdout(), args[0], args[1], debug)
		},
	}

	return cmd
}

func runConvert(cmd *cobra.Command, out io.Writer, inDir, outDir string, debug bool) error {
	level := "warn"
	if debug {
		level = "debug"
	}
	log := logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))

	var conversions []pdf.Conversion
	err := cliui.Step(out, fmt.Sprintf("Converting %s", inDir), func() error {
		var err error
		conversions, err = pdf.ConvertDirectory(cmd.Context(), inDir, outDir, log)
		return err
	})
	if err != nil {
		return err
	}

	for _, c := range conversions {
		name := filepath.Base(c.Source)
		if c.Err != nil {
			fmt.Fprintf(out, "  %s %s %s\n", cliui.FailMark, name, cliui.ErrorStyle.Render(c.Err.Error()))
			continue
		}
		fmt.Fprintf(out, "  %s %s %s %s\n",
			cliui.SuccessMark, name,
			cliui.DimStyle.Render("→"),
			cliui.ValueStyle.Render(fmt.Sprintf("%s (%d pages)", c.Output, c.Pages)),
		)
	}

	if failed := pdf.Failed(conversions); failed > 0 {
		return fmt.Errorf("%d of %d PDF files failed to convert", failed, len(conversions))
	}
	return nil
}
