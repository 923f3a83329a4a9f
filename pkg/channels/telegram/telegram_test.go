package telegram_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/channels/telegram"
	"github.com/xeleb-ai/xeleb/pkg/logger"
)

type fakeAsker struct {
	mu        sync.Mutex
	questions []agent.Question
	err       error
}

func (f *fakeAsker) Ask(_ context.Context, q agent.Question) (agent.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, q)
	if f.err != nil {
		return agent.Answer{}, f.err
	}
	return agent.Answer{Response: "echo: " + q.Question, ResponseTime: "0.01s"}, nil
}

func (f *fakeAsker) asked() []agent.Question {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.Question(nil), f.questions...)
}

type fakeClearer struct {
	cleared []string
	exists  bool
}

func (f *fakeClearer) Clear(_ context.Context, userID, threadID string) (bool, error) {
	f.cleared = append(f.cleared, userID+"/"+threadID)
	return f.exists, nil
}

// fakeTelegram answers the Bot API methods the bot uses. getUpdates hands
// out the queued update once.
type fakeTelegram struct {
	mu      sync.Mutex
	pending []string
	sent    []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	defer f.mu.Unlock()

	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Xeleb","username":"xeleb_bot"}}`)
	case "getUpdates":
		if len(f.pending) == 0 {
			time.Sleep(10 * time.Millisecond)
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, strings.Join(f.pending, ","))
		f.pending = nil
	case "sendChatAction":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	case "sendMessage":
		f.sent = append(f.sent, r.FormValue("text"))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func (f *fakeTelegram) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

var _ = Describe("Bot", func() {
	var (
		ctx     context.Context
		fake    *fakeTelegram
		srv     *httptest.Server
		asker   *fakeAsker
		clearer *fakeClearer
		bot     *telegram.Bot
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeTelegram{}
		srv = httptest.NewServer(fake)
		DeferCleanup(srv.Close)

		asker = &fakeAsker{}
		clearer = &fakeClearer{exists: true}

		var err error
		bot, err = telegram.New(telegram.Config{
			Token:       "TOKEN",
			AgentName:   "Ava",
			APIEndpoint: srv.URL + "/bot%s/%s",
			PollTimeout: 1,
		}, asker, clearer, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("verifies the token on start", func() {
		Expect(bot.Username()).To(Equal("xeleb_bot"))
	})

	It("requires a token", func() {
		_, err := telegram.New(telegram.Config{}, asker, clearer, logger.Nop())
		Expect(err).To(MatchError("telegram token is required"))
	})

	Describe("Reply", func() {
		It("asks the configured agent with the user and chat as thread", func() {
			Expect(bot.Reply(ctx, message("hello"))).To(Equal("echo: hello"))

			q := asker.asked()[0]
			Expect(q.UserThread.UserID).To(Equal("7"))
			Expect(q.UserThread.ThreadID).To(Equal("42"))
			Expect(q.UserThread.AgentName).To(Equal("Ava"))
		})

		It("clears the thread on /reset", func() {
			Expect(bot.Reply(ctx, message("/reset"))).To(ContainSubstring("cleared"))
			Expect(clearer.cleared).To(Equal([]string{"7/42"}))

			clearer.exists = false
			Expect(bot.Reply(ctx, message("/reset"))).To(ContainSubstring("nothing to clear"))
		})

		It("greets on /start without asking", func() {
			Expect(bot.Reply(ctx, message("/start"))).To(ContainSubstring("/reset"))
			Expect(asker.asked()).To(BeEmpty())
		})

		It("ignores messages without text", func() {
			Expect(bot.Reply(ctx, message("  "))).To(BeEmpty())
		})

		It("apologizes when the agent fails", func() {
			asker.err = errors.New("model down")
			Expect(bot.Reply(ctx, message("hello"))).To(ContainSubstring("Sorry"))
		})
	})

	It("answers polled messages until stopped", func() {
		fake.mu.Lock()
		fake.pending = []string{`{"update_id":1,"message":{"message_id":1,"date":0,"from":{"id":7,"is_bot":false,"first_name":"U"},"chat":{"id":42,"type":"private"},"text":"hi there"}}`}
		fake.mu.Unlock()

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- bot.Run(runCtx) }()

		Eventually(fake.sentTexts).Should(Equal([]string{"echo: hi there"}))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})

var _ = Describe("Split", func() {
	It("keeps short text whole", func() {
		Expect(telegram.Split("short", 10)).To(Equal([]string{"short"}))
	})

	It("cuts at line breaks when possible", func() {
		parts := telegram.Split("aaaa\nbbbb\ncc", 6)
		Expect(parts).To(Equal([]string{"aaaa\n", "bbbb\n", "cc"}))
	})

	It("cuts long lines at the limit", func() {
		parts := telegram.Split(strings.Repeat("x", 25), 10)
		Expect(parts).To(HaveLen(3))
		Expect(parts[2]).To(Equal("xxxxx"))
	})
})
