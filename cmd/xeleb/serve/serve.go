// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apicmder "github.com/xeleb-ai/xeleb/cmd/xeleb/serve/api"
	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/channels/telegram"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/knowledge"
)

type ServeCommander struct {
	cfg    *config.Config
	debug  bool
	logger *slog.Logger

	// bound through the flag registry
	listen    string
	dataPath  string
	schedule  string
	telegram  bool
	mcp       bool
	logJSON   bool
	agentName string
}

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagKnowledgePath,
	config.FlagSchedule,
	config.FlagTelegram,
	config.FlagMCP,
	config.FlagLogJSON,
	config.FlagAgentName,
}

const serveLongDesc string = `Run Xeleb services.

"xeleb serve" runs the API server together with the async turn workers,
the Telegram channel (when telegram.enabled or --telegram) and scheduled
knowledge re-ingestion (when knowledge.schedule or --schedule is set).

  xeleb serve          Run everything enabled in the config
  xeleb serve api      Run just the API server

Examples:
  xeleb serve --telegram --schedule "@every 6h"
  xeleb serve --listen :9000 --mcp`

const serveShortDesc string = "Run Xeleb services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, serveFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Registry, config.FlagKnowledgePath, &cmder.dataPath)
	config.AddStringFlag(cmd, config.Registry, config.FlagSchedule, &cmder.schedule)
	config.AddStringFlag(cmd, config.Registry, config.FlagAgentName, &cmder.agentName)
	config.AddBoolFlag(cmd, config.Registry, config.FlagTelegram, &cmder.telegram)
	config.AddBoolFlag(cmd, config.Registry, config.FlagMCP, &cmder.mcp)
	config.AddBoolFlag(cmd, config.Registry, config.FlagLogJSON, &cmder.logJSON)

	cmd.AddCommand(apicmder.NewAPICmd())

	return cmd
}

func (c *ServeCommander) run() error {
	var closeLog func()
	var err error
	c.logger, closeLog, err = bootstrap.NewLogger(c.cfg, c.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack, err := bootstrap.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			c.logger.Warn("closing services", "error", err)
		}
	}()

	if err := stack.Vectors.EnsureCollection(ctx); err != nil {
		c.logger.Warn("knowledge collection unavailable", "collection", c.cfg.VectorStore.Collection, "error", err)
	}

	apiServer, err := stack.NewAPIServer()
	if err != nil {
		return err
	}

	c.logger.Info("starting api server",
		"api_addr", c.cfg.API.Listen,
		"agent", c.cfg.Agent.DefaultName,
		"mcp", c.cfg.MCP.Enabled,
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if c.cfg.Telegram.Enabled {
		bot, err := telegram.New(telegram.Config{
			Token:     c.cfg.Telegram.Token,
			AgentName: c.cfg.Telegram.AgentName,
		}, stack.Service.WithChannel("telegram"), stack.Conversations, c.logger.With("channel", "telegram"))
		if err != nil {
			return fmt.Errorf("creating telegram bot: %w", err)
		}

		c.logger.Info("starting telegram channel", "bot", bot.Username())
		go func() {
			if err := bot.Run(ctx); err != nil {
				errChan <- fmt.Errorf("telegram error: %w", err)
			}
		}()
	}

	if c.cfg.Knowledge.Schedule != "" {
		ingester := bootstrap.NewIngester(c.cfg, stack.Embedder, stack.Vectors, stack.Metrics, c.logger)
		scheduler, err := knowledge.NewScheduler(c.cfg.Knowledge.Schedule, c.cfg.Knowledge.DataPath, ingester, c.logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop(context.Background())
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err = <-errChan:
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	cancel()
	if shutdownErr := apiServer.Shutdown(); shutdownErr != nil {
		c.logger.Warn("shutting down api server", "error", shutdownErr)
	}
	return err
}
