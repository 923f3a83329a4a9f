package agent_test

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	convinmemory "github.com/xeleb-ai/xeleb/pkg/conversation/inmemory"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/memory/local"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	profileinmemory "github.com/xeleb-ai/xeleb/pkg/profile/inmemory"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
	"github.com/xeleb-ai/xeleb/pkg/worker"
)

type recordingSink struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (r *recordingSink) Enqueue(job worker.Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return true
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		chatModel *testutils.MockChatModel
		convs     *convinmemory.Store
		sink      *recordingSink
		mem       *local.Driver
		service   *agent.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		chatModel = testutils.NewMockChatModel()
		convs = convinmemory.NewStore()
		sink = &recordingSink{}
		mem = local.NewDriver(local.Config{Enabled: true})
		searcher, _ := newSearcher()

		manager := agent.NewManager(agent.ManagerConfig{
			Model:       chatModel,
			Retriever:   searcher,
			DefaultName: "MISS CHINA AI",
			Logger:      logger.Nop(),
		})
		service = agent.NewService(agent.ServiceConfig{
			Agents:        manager,
			Conversations: convs,
			Sink:          sink,
			Memory:        mem,
			Channel:       "api",
			Logger:        logger.Nop(),
		})
	})

	It("resolves thread and agent defaults", func() {
		key := service.Resolve(conversation.ThreadKey{UserID: "u1"})
		Expect(key.ThreadID).To(Equal("1234"))
		Expect(key.AgentName).To(Equal("MISS CHINA AI"))
	})

	It("keeps resolving to the default agent after another agent is initialized", func() {
		profiles := profileinmemory.NewStore()
		_, err := profiles.Insert(ctx, profile.Profile{Identity: profile.Identity{AgentName: "Ava"}})
		Expect(err).NotTo(HaveOccurred())

		searcher, _ := newSearcher()
		manager := agent.NewManager(agent.ManagerConfig{
			Model:       chatModel,
			Retriever:   searcher,
			Profiles:    profiles,
			DefaultName: "MISS CHINA AI",
			Logger:      logger.Nop(),
		})
		svc := agent.NewService(agent.ServiceConfig{
			Agents:        manager,
			Conversations: convs,
			Logger:        logger.Nop(),
		})

		_, err = manager.Initialize(ctx, "Ava")
		Expect(err).NotTo(HaveOccurred())
		Expect(manager.Current()).To(Equal("Ava"))

		Expect(svc.Resolve(conversation.ThreadKey{UserID: "u"}).AgentName).To(Equal("MISS CHINA AI"))
		Expect(svc.Resolve(conversation.ThreadKey{UserID: "u", AgentName: "Ava"}).AgentName).To(Equal("Ava"))
	})

	It("prefers the configured default agent over the manager's", func() {
		svc := agent.NewService(agent.ServiceConfig{
			Agents:        service.Agents(),
			Conversations: convs,
			DefaultAgent:  "Ava",
			Logger:        logger.Nop(),
		})
		Expect(svc.Resolve(conversation.ThreadKey{UserID: "u"}).AgentName).To(Equal("Ava"))
	})

	It("answers, stores the turn and enqueues its event", func() {
		chatModel.Replies = []*schema.Message{schema.AssistantMessage("Hello!", nil)}

		ans, err := service.Ask(ctx, agent.Question{
			UserThread: conversation.ThreadKey{UserID: "u1", ThreadID: "t1"},
			Question:   "hi",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Response).To(Equal("Hello!"))
		Expect(ans.ResponseTime).To(MatchRegexp(`^\d+\.\d{2}s$`))

		conv, err := convs.Retrieve(ctx, conversation.ThreadKey{UserID: "u1", ThreadID: "t1", AgentName: "MISS CHINA AI"})
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Messages).To(Equal([]conversation.Message{
			{Role: conversation.RoleUser, Content: "hi"},
			{Role: conversation.RoleAssistant, Content: "Hello!"},
		}))

		Expect(sink.jobs).To(HaveLen(1))
		ev := sink.jobs[0].Event
		Expect(ev.Source.UserID).To(Equal("u1"))
		Expect(ev.Source.Channel).To(Equal("api"))
		Expect(ev.Question).To(Equal("hi"))
		Expect(ev.Answer).To(Equal("Hello!"))
		Expect(ev.Timing.Streaming).To(BeFalse())
	})

	It("passes the recent history of the thread to the agent", func() {
		q := agent.Question{UserThread: conversation.ThreadKey{UserID: "u1"}, Question: "first"}
		chatModel.Replies = []*schema.Message{
			schema.AssistantMessage("one", nil),
			schema.AssistantMessage("two", nil),
		}
		_, err := service.Ask(ctx, q)
		Expect(err).NotTo(HaveOccurred())

		q.Question = "second"
		_, err = service.Ask(ctx, q)
		Expect(err).NotTo(HaveOccurred())

		second := chatModel.Calls()[1]
		Expect(second[len(second)-2].Content).To(HaveSuffix("User: first\nAssistant: one"))
		Expect(second[len(second)-1].Content).To(Equal("second"))
	})

	It("adds recalled memory to the agent input", func() {
		Expect(mem.Store(ctx, memory.Turn{
			UserID: "u1", ThreadID: "old", AgentName: "MISS CHINA AI",
			Question: "my dog is Rex", Answer: "cute", At: time.Now(),
		})).To(Succeed())

		_, err := service.Ask(ctx, agent.Question{UserThread: conversation.ThreadKey{UserID: "u1"}, Question: "remember my dog?"})
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, m := range chatModel.Calls()[0] {
			if m.Role == schema.System && len(m.Content) > 0 && m.Content != chatModel.Calls()[0][0].Content {
				Expect(m.Content).To(ContainSubstring("my dog is Rex"))
				found = true
			}
		}
		Expect(found).To(BeTrue())
	})

	It("answers without memory when recall fails", func() {
		failing := testutils.NewMockMemoryDriver()
		failing.FailRecall = true
		searcher, _ := newSearcher()
		svc := agent.NewService(agent.ServiceConfig{
			Agents: agent.NewManager(agent.ManagerConfig{
				Model:       chatModel,
				Retriever:   searcher,
				DefaultName: "MISS CHINA AI",
				Logger:      logger.Nop(),
			}),
			Conversations: convs,
			Sink:          sink,
			Memory:        failing,
			Logger:        logger.Nop(),
		})
		chatModel.Replies = []*schema.Message{schema.AssistantMessage("still here", nil)}

		ans, err := svc.Ask(ctx, agent.Question{UserThread: conversation.ThreadKey{UserID: "u3"}, Question: "do you remember?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Response).To(Equal("still here"))
		Expect(failing.RecallQueries).To(Equal([]string{"do you remember?"}))
	})

	It("streams deltas and records the full reply", func() {
		chatModel.Replies = []*schema.Message{schema.AssistantMessage("Hello there", nil)}

		var deltas []string
		ans, err := service.AskStream(ctx, agent.Question{
			UserThread: conversation.ThreadKey{UserID: "u2"},
			Question:   "hi",
		}, func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ans.Response).To(Equal("Hello there"))
		Expect(len(deltas)).To(BeNumerically(">", 1))
		Expect(sink.jobs[0].Event.Timing.Streaming).To(BeTrue())
	})

	It("rejects blank questions without touching storage", func() {
		_, err := service.Ask(ctx, agent.Question{UserThread: conversation.ThreadKey{UserID: "u1"}})
		Expect(err).To(MatchError(agent.ErrEmptyQuestion))
		all, err := convs.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(BeEmpty())
	})

	It("fails for unknown agents", func() {
		_, err := service.Ask(ctx, agent.Question{
			UserThread: conversation.ThreadKey{UserID: "u1", AgentName: "Nobody"},
			Question:   "hi",
		})
		Expect(err).To(MatchError(agent.ErrUnknownAgent))
	})
})

var _ = Describe("FormatResponseTime", func() {
	It("renders seconds with two decimals", func() {
		Expect(agent.FormatResponseTime(1234 * time.Millisecond)).To(Equal("1.23s"))
		Expect(agent.FormatResponseTime(0)).To(Equal("0.00s"))
	})
})
