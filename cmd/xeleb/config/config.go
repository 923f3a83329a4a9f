// Package configcmder provides the config command for managing persistent
// xeleb configuration stored in the .xeleb/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
)

const configLongDesc string = `Manage persistent xeleb configuration.

Configuration is stored as config.toml in the .xeleb/ directory and provides
default values for command flags. CLI flags and XELEB_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  llm.model, llm.base_url, agent.default_name,
  vector_store.provider, vector_store.target, embedding.model,
  conversation.provider, profile.driver, profile.dsn

Use subcommands to get, set, or list configuration values:
  xeleb config set <key> <value>    Set a configuration value
  xeleb config get <key>            Get a configuration value
  xeleb config list                 List all configuration values

Examples:
  xeleb config set llm.model gpt-4o
  xeleb config set vector_store.provider sqlite
  xeleb config get agent.default_name
  xeleb config list`

const configShortDesc string = "Manage persistent xeleb configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// isSecret reports whether key holds a credential that list output masks.
func isSecret(key string) bool {
	return strings.HasSuffix(key, ".api_key") || strings.HasSuffix(key, ".token") || key == "profile.dsn"
}

func mask(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
