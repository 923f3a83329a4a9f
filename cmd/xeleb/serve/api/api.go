// Package apicmder provides the API xeleb server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/config"
)

type apiCommander struct {
	cfg    *config.Config
	debug  bool
	logger *slog.Logger

	listen  string
	mcp     bool
	logJSON bool
}

var apiFlags = []string{
	config.FlagAPIListen,
	config.FlagMCP,
	config.FlagLogJSON,
}

const apiLongDesc string = `Run the Xeleb API server for asking persona agents, managing agent
profiles and querying the knowledge base.

Turn events are still published by the worker pool; the Telegram channel and
scheduled ingestion are not started.`

const apiShortDesc string = "Run the Xeleb API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, apiFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &cmder.listen)
	config.AddBoolFlag(cmd, config.Registry, config.FlagMCP, &cmder.mcp)
	config.AddBoolFlag(cmd, config.Registry, config.FlagLogJSON, &cmder.logJSON)

	return cmd
}

func (c *apiCommander) run() error {
	var closeLog func()
	var err error
	c.logger, closeLog, err = bootstrap.NewLogger(c.cfg, c.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	stack, err := bootstrap.Build(context.Background(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	server, err := stack.NewAPIServer()
	if err != nil {
		return err
	}

	c.logger.Info("starting API server",
		"listen", c.cfg.API.Listen,
	)

	return server.Run()
}
