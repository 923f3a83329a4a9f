// Package telegram serves a persona agent to Telegram chats over long
// polling. Each chat is one conversation thread of the sending user.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

const (
	// MaxMessageLength is the Telegram limit on one text message, in runes.
	MaxMessageLength = 4096

	DefaultPollTimeout = 60

	greeting    = "Hi! Send me a message and I will answer. Use /reset to start over."
	resetDone   = "Conversation cleared. Let's start over."
	resetNone   = "There is nothing to clear yet."
	failedReply = "Sorry, something went wrong. Please try again."
)

// Asker answers questions. *agent.Service implements it.
type Asker interface {
	Ask(ctx context.Context, q agent.Question) (agent.Answer, error)
}

// Clearer deletes a user's thread.
type Clearer interface {
	Clear(ctx context.Context, userID, threadID string) (bool, error)
}

type Config struct {
	Token string

	// AgentName answers every chat. Empty selects the default agent.
	AgentName string

	// APIEndpoint overrides tgbotapi.APIEndpoint.
	APIEndpoint string

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int
}

// Bot relays Telegram messages to an agent.
type Bot struct {
	api     *tgbotapi.BotAPI
	config  Config
	asker   Asker
	clearer Clearer
	logger  *slog.Logger
}

// New connects to the Bot API and verifies the token.
func New(config Config, asker Asker, clearer Clearer, logger *slog.Logger) (*Bot, error) {
	if config.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if asker == nil || clearer == nil {
		return nil, errors.New("telegram bot needs an asker and a clearer")
	}
	if config.APIEndpoint == "" {
		config.APIEndpoint = tgbotapi.APIEndpoint
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}

	_ = tgbotapi.SetLogger(botLogger{logger: logger})

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(config.Token, config.APIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	return &Bot{
		api:     api,
		config:  config,
		asker:   asker,
		clearer: clearer,
		logger:  logger,
	}, nil
}

// Username is the bot's Telegram username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run polls for updates until ctx is done. Messages are answered one at a
// time so turns of a chat are stored in order.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot polling", "username", b.Username(), "agent", b.config.AgentName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) != "" {
		if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			b.logger.Debug("telegram chat action failed", "chat_id", chatID, "error", err)
		}
	}

	reply := b.Reply(ctx, msg)
	if reply == "" {
		return
	}

	for _, part := range Split(reply, MaxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.logger.Error("telegram send failed", "chat_id", chatID, "error", err)
			return
		}
	}
}

// Reply computes the answer to one message. Non-text messages get no reply.
func (b *Bot) Reply(ctx context.Context, msg *tgbotapi.Message) string {
	userID := strconv.FormatInt(msg.From.ID, 10)
	threadID := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			return greeting
		case "reset":
			cleared, err := b.clearer.Clear(ctx, userID, threadID)
			if err != nil {
				b.logger.Error("telegram reset failed", "user_id", userID, "thread_id", threadID, "error", err)
				return failedReply
			}
			if !cleared {
				return resetNone
			}
			return resetDone
		}
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ""
	}

	ans, err := b.asker.Ask(ctx, agent.Question{
		UserThread: conversation.ThreadKey{
			UserID:    userID,
			ThreadID:  threadID,
			AgentName: b.config.AgentName,
		},
		Question: text,
	})
	if err != nil {
		b.logger.Error("telegram answer failed", "user_id", userID, "thread_id", threadID, "error", err)
		return failedReply
	}
	return ans.Response
}

// Split cuts text into parts of at most limit runes, preferring line breaks.
func Split(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// botLogger routes the Bot API client's log lines to slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "component", "telegram")
}

func (l botLogger) Printf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "telegram")
}
