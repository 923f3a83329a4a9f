// Package initcmder provides the init command for initializing a local .xeleb
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
)

const (
	dirName    = ".xeleb"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .xeleb/ directory in the current working directory.

Creates a local .xeleb/ directory that takes precedence over the default
~/.xeleb/ directory for configuration and the chat session. A config.toml
with default values is written when none exists yet.

Use --preset to start from a deployment preset instead of the defaults.
Presets replace an existing config.toml. A preset is either a built-in name
or an http(s) URL serving a config.toml.

Built-in presets:
  local        sqlite-vec knowledge, sqlite profiles, in-memory conversations,
               Ollama for chat and embeddings
  production   qdrant, MongoDB, MySQL, Kafka turn events, JSON logs
  openai       like the defaults but with OpenAI embeddings

Examples:
  xeleb init
  xeleb init --preset local
  xeleb init --preset https://example.com/xeleb/config.toml`

const initShortDesc string = "Initialize a local .xeleb/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	// Resolve the preset before touching the filesystem.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = resolvePreset(ctx, c.preset)
		if err != nil {
			return err
		}
	}

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .xeleb directory: %w", err)
		}
	}

	cfgPath := filepath.Join(dir, configFile)
	if cfg == nil {
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Fprintf(w, "Already initialized: %s\n", dir)
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking config: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	verb := "Initialized"
	if existed {
		verb = "Updated"
	}
	fmt.Fprintf(w, "  %s %s .xeleb directory: %s\n", cliui.SuccessMark, verb, dir)
	if c.preset != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Preset:"), cliui.ValueStyle.Render(c.preset))
	}
	return nil
}

// resolvePreset returns a built-in preset or fetches a remote config.toml.
func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if !strings.HasPrefix(preset, "http://") && !strings.HasPrefix(preset, "https://") {
		return config.PresetConfig(preset)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preset, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
