// Package chatcmder provides the chat command for talking to persona agents
// through a running xeleb API server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/bootstrap"
	"github.com/xeleb-ai/xeleb/pkg/cliui"
	"github.com/xeleb-ai/xeleb/pkg/config"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/dotdir"
	"github.com/xeleb-ai/xeleb/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Render("%s> ")
)

type chatCommander struct {
	cfg       *config.Config
	configDir string
	debug     bool
	logger    *slog.Logger

	apiTarget string
	userID    string
	agentName string
	threadID  string
	markdown  bool

	client *apiClient
	key    conversation.ThreadKey
}

var chatFlags = []string{
	config.FlagAPITarget,
	config.FlagUserID,
	config.FlagAgentName,
	config.FlagThreadID,
}

const chatLongDesc string = `Start an interactive chat with a persona agent.

Questions are sent to a running xeleb API server and the answer is streamed
back as it is generated. The user, thread and agent are remembered in
.xeleb/session.json so the next "xeleb chat" continues the same thread.

Commands inside the chat:
  /agent <name>   Switch to (and load) another agent
  /agents         List loaded agents
  /history        Show the latest messages of the thread
  /reset          Delete the thread's conversation memory
  /exit           Quit (Ctrl+D works too)

Examples:
  xeleb chat
  xeleb chat --agent "MISS CHINA AI" --thread fan-club
  xeleb chat --api-target http://localhost:7888 --markdown`

const chatShortDesc string = "Chat with a persona agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd, chatFlags...)
			if err != nil {
				return err
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.resolveSession(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagUserID, &cmder.userID)
	config.AddStringFlag(cmd, config.Registry, config.FlagAgentName, &cmder.agentName)
	config.AddStringFlag(cmd, config.Registry, config.FlagThreadID, &cmder.threadID)
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each complete answer as markdown instead of streaming raw text")

	return cmd
}

// resolveSession picks the thread key: explicit flags first, then the saved
// session, then config.
func (c *chatCommander) resolveSession(cmd *cobra.Command) error {
	c.key = conversation.ThreadKey{
		UserID:    c.cfg.Client.UserID,
		ThreadID:  c.cfg.Agent.DefaultThreadID,
		AgentName: c.cfg.Agent.DefaultName,
	}

	session, err := dotdir.NewManager().LoadSession(c.configDir)
	if err != nil {
		return fmt.Errorf("loading chat session: %w", err)
	}
	if session == nil {
		return nil
	}

	changed := func(key string) bool {
		return cmd.Flags().Changed(config.Registry[key].Name)
	}
	if !changed(config.FlagUserID) && session.UserID != "" {
		c.key.UserID = session.UserID
	}
	if !changed(config.FlagThreadID) && session.ThreadID != "" {
		c.key.ThreadID = session.ThreadID
	}
	if !changed(config.FlagAgentName) && session.AgentName != "" {
		c.key.AgentName = session.AgentName
	}
	return nil
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
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

	c.client = newAPIClient(c.cfg.Client.APITarget)

	fmt.Fprintln(out)
	if _, err := c.client.initialize(ctx, c.key.AgentName); err != nil {
		return fmt.Errorf("loading agent %q: %w", c.key.AgentName, err)
	}

	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Agent:"), cliui.NameStyle.Render(c.key.AgentName))
	fmt.Fprintf(out, "  %s %s %s\n",
		cliui.KeyStyle.Render("Thread:"),
		cliui.ValueStyle.Render(c.key.ThreadID),
		cliui.DimStyle.Render("(user "+c.key.UserID+")"),
	)
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if strings.HasPrefix(input, "/") {
			if err := c.command(ctx, out, input); err != nil {
				fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
			}
			continue
		}

		if err := c.ask(ctx, out, input); err != nil {
			fmt.Fprintf(out, "\n  %s %v\n\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if err := dotdir.NewManager().SaveSession(&dotdir.Session{
		UserID:    c.key.UserID,
		ThreadID:  c.key.ThreadID,
		AgentName: c.key.AgentName,
	}, c.configDir); err != nil {
		c.logger.Warn("could not save chat session", "error", err)
	}

	fmt.Fprintln(out)
	return nil
}

func (c *chatCommander) ask(ctx context.Context, out io.Writer, question string) error {
	q := agent.Question{UserThread: c.key, Question: question}

	if c.markdown {
		var answer agent.Answer
		err := cliui.Step(out, "thinking", func() error {
			var err error
			answer, err = c.client.askStream(ctx, q, nil)
			return err
		})
		if err != nil {
			return err
		}

		rendered, err := cliui.RenderMarkdown(answer.Response)
		if err != nil {
			c.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprint(out, rendered)
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render(answer.ResponseTime))
		return nil
	}

	fmt.Fprintf(out, assistantPrompt, c.key.AgentName)
	answer, err := c.client.askStream(ctx, q, func(delta string) {
		fmt.Fprint(out, delta)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render(answer.ResponseTime))
	return nil
}

func (c *chatCommander) command(ctx context.Context, out io.Writer, input string) error {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/agent":
		if arg == "" {
			return fmt.Errorf("usage: /agent <name>")
		}
		res, err := c.client.initialize(ctx, arg)
		if err != nil {
			return err
		}
		c.key.AgentName = arg
		fmt.Fprintf(out, "  %s %s\n\n", cliui.SuccessMark, res.Message)

	case "/agents":
		res, err := c.client.listAgents(ctx)
		if err != nil {
			return err
		}
		for _, a := range res.Agents {
			mark := " "
			if a == c.key.AgentName {
				mark = "*"
			}
			fmt.Fprintf(out, "  %s %s\n", mark, cliui.NameStyle.Render(a))
		}
		fmt.Fprintln(out)

	case "/history":
		page, err := c.client.history(ctx, c.key, 1)
		if err != nil {
			return err
		}
		if len(page.Messages) == 0 {
			fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("No messages yet."))
			return nil
		}
		for _, m := range page.Messages {
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render(m.Role+":"), utils.Preview(m.Content, 100))
		}
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d messages in thread", page.TotalCount)))

	case "/reset":
		existed, err := c.client.clearHistory(ctx, c.key.UserID, c.key.ThreadID)
		if err != nil {
			return err
		}
		if !existed {
			fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Nothing to reset."))
			return nil
		}
		fmt.Fprintf(out, "  %s Conversation reset\n\n", cliui.SuccessMark)

	default:
		return fmt.Errorf("unknown command %s", name)
	}
	return nil
}
