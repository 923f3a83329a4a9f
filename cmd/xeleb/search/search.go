// Package searchcmder provides the search command for querying the knowledge
// base through a running xeleb API server.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	cfg *config.Config

	query string
	limit uint
	topN  uint
	quiet bool

	apiTarget string
}

var searchFlags = []string{
	config.FlagAPITarget,
	config.FlagSearchLimit,
	config.FlagSearchTopN,
}

const searchLongDesc string = `Search the knowledge base via the xeleb API.

Runs the same retrieval the agents use (vector search followed by
cross-encoder reranking) and prints the best passages. Requires a running
xeleb API server with a vector store and embedder configured.

Use --quiet to output only the passage ids, one per line.

Examples:
  xeleb search "where was she crowned"
  xeleb search "charity work" --top-n 3
  xeleb search "pageant results" --limit 20 --api-target http://localhost:7888`

const searchShortDesc string = "Search the knowledge base"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, searchFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Registry, config.FlagSearchLimit, &cmder.limit)
	config.AddUintFlag(cmd, config.Registry, config.FlagSearchTopN, &cmder.topN)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only passage ids, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, out io.Writer) error {
	output, err := SearchAPI(ctx, c.cfg.Client.APITarget, c.query, int(c.cfg.Search.Limit), int(c.cfg.Search.TopN))
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Fprintln(out, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Fprintln(out, result.ID)
		}
		return nil
	}

	fmt.Fprintf(out, "\n%s %s\n",
		headerStyle.Render("Search Results for:"),
		sourceStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	if !output.Reranked {
		fmt.Fprintf(out, "%s\n", dimStyle.Render("(reranking unavailable, showing vector order)"))
	}
	fmt.Fprintln(out)

	for i, result := range output.Results {
		printResult(out, i+1, result)
	}

	return nil
}

func printResult(out io.Writer, rank int, result apisearch.Result) {
	source, _ := result.Payload["filename"].(string)
	if source == "" {
		source = result.ID
	}

	fmt.Fprintf(out, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		sourceStyle.Render(source),
	)
	fmt.Fprintf(out, "  %s\n\n", previewStyle.Render(utils.Preview(result.Text, 160)))
}

// SearchAPI calls the xeleb search API and returns the parsed output.
// Zero limit and topN leave the server defaults in place.
func SearchAPI(ctx context.Context, apiTarget, query string, limit, topN int) (*apisearch.Output, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = strings.TrimRight(searchURL.Path, "/") + "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if topN > 0 {
		q.Set("top_n", strconv.Itoa(topN))
	}
	searchURL.RawQuery = q.Encode()

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	client := &http.Client{Timeout: time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to xeleb API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var output apisearch.Output
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
