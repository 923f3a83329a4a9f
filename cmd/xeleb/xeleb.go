// Package xelebcmder
package xelebcmder

import (
	"github.com/spf13/cobra"

	agentscmder "github.com/xeleb-ai/xeleb/cmd/xeleb/agents"
	chatcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/chat"
	collectioncmder "github.com/xeleb-ai/xeleb/cmd/xeleb/collection"
	configcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/config"
	conversationscmder "github.com/xeleb-ai/xeleb/cmd/xeleb/conversations"
	convertcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/convert"
	ingestcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/ingest"
	initcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/init"
	searchcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/search"
	servecmder "github.com/xeleb-ai/xeleb/cmd/xeleb/serve"
	versioncmder "github.com/xeleb-ai/xeleb/cmd/version"
)

const xelebLongDesc string = `Xeleb runs celebrity persona agents backed by conversation memory,
a reranked knowledge base and relational agent profiles.

Run services using:
  xeleb serve          Run the API server with workers, Telegram and scheduled ingestion
  xeleb serve api      Run only the API server

Manage data using:
  xeleb ingest         Embed markdown knowledge into the vector store
  xeleb agents         Manage agent profiles
  xeleb conversations  Export or clear conversation memory

Talk to a running server using:
  xeleb chat           Chat with an agent
  xeleb search         Query the knowledge base`

const xelebShortDesc string = "Xeleb - celebrity persona agents"

func NewXelebCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "xeleb",
		Short:        xelebShortDesc,
		Long:         xelebLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .xeleb/ directory holding config.toml")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(convertcmder.NewConvertCmd())
	cmd.AddCommand(collectioncmder.NewCollectionCmd())
	cmd.AddCommand(agentscmder.NewAgentsCmd())
	cmd.AddCommand(conversationscmder.NewConversationsCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
