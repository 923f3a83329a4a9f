package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/conversation"
	convinmemory "github.com/xeleb-ai/xeleb/pkg/conversation/inmemory"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	profileinmemory "github.com/xeleb-ai/xeleb/pkg/profile/inmemory"
	"github.com/xeleb-ai/xeleb/pkg/sse"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

const defaultAgent = "MISS CHINA AI"

type testEnv struct {
	server    *Server
	chatModel *testutils.MockChatModel
	convs     *convinmemory.Store
	profiles  *profileinmemory.Store
	vectors   *testutils.MockVectorDriver
	metrics   *metrics.Metrics
}

func newTestEnv() *testEnv {
	env := &testEnv{
		chatModel: testutils.NewMockChatModel(),
		convs:     convinmemory.NewStore(),
		profiles:  profileinmemory.NewStore(),
		vectors:   testutils.NewMockVectorDriver(),
		metrics:   metrics.New(),
	}
	env.vectors.Results = []vector.QueryResult{{
		Document: vector.Document{ID: "1", Text: "The crown is gold.", Payload: map[string]any{"filename": "crown.md"}},
		Score:    0.9,
	}}
	searcher := apisearch.NewSearcher(testutils.NewMockEmbedder(), env.vectors, testutils.NewMockReranker(), logger.Nop())

	manager := agent.NewManager(agent.ManagerConfig{
		Model:       env.chatModel,
		Retriever:   searcher,
		Profiles:    env.profiles,
		DefaultName: defaultAgent,
		Logger:      logger.Nop(),
	})
	service := agent.NewService(agent.ServiceConfig{
		Agents:        manager,
		Conversations: env.convs,
		Channel:       "api",
		Logger:        logger.Nop(),
	})

	var err error
	env.server, err = NewServer(Config{
		ListenAddr: ":0",
		Service:    service,
		Profiles:   env.profiles,
		Searcher:   searcher,
		Collection: env.vectors,
		Metrics:    env.metrics,
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return env
}

func (e *testEnv) do(method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var v T
	Expect(json.NewDecoder(resp.Body).Decode(&v)).To(Succeed())
	return v
}

func question(userID, agentName, q string) agent.Question {
	return agent.Question{
		UserThread: conversation.ThreadKey{UserID: userID, ThreadID: "t1", AgentName: agentName},
		Question:   q,
	}
}

var _ = Describe("NewServer", func() {
	It("requires the agent service", func() {
		_, err := NewServer(Config{Profiles: profileinmemory.NewStore()}, logger.Nop())
		Expect(err).To(MatchError("agent service is required"))
	})
})

var _ = Describe("agent routes", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	It("reports the platform status at the root", func() {
		resp := env.do(http.MethodGet, "/", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		status := decode[StatusResponse](resp)
		Expect(status.Message).To(Equal("AI Agent platform is running v1!"))
		Expect(status.Datetime).To(MatchRegexp(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`))
	})

	Describe("POST /ask", func() {
		It("answers and stores the turn", func() {
			env.chatModel.Replies = []*schema.Message{schema.AssistantMessage("Hello!", nil)}

			resp := env.do(http.MethodPost, "/ask", question("u1", "", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			ans := decode[agent.Answer](resp)
			Expect(ans.Response).To(Equal("Hello!"))
			Expect(ans.ResponseTime).To(MatchRegexp(`^\d+\.\d{2}s$`))

			conv, err := env.convs.Retrieve(context.Background(), conversation.ThreadKey{
				UserID: "u1", ThreadID: "t1", AgentName: defaultAgent,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Messages).To(HaveLen(2))
		})

		It("rejects an empty question", func() {
			resp := env.do(http.MethodPost, "/ask", question("u1", "", "  "))
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a request without a user", func() {
			resp := env.do(http.MethodPost, "/ask", question("", "", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for an agent without a profile", func() {
			resp := env.do(http.MethodPost, "/ask", question("u1", "Nobody", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			Expect(decode[ErrorResponse](resp).Error).To(ContainSubstring("Nobody"))
		})

		It("returns 500 with the message when the model fails", func() {
			env.chatModel.Err = io.ErrUnexpectedEOF

			resp := env.do(http.MethodPost, "/ask", question("u1", "", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
			Expect(decode[ErrorResponse](resp).Error).To(ContainSubstring("unexpected EOF"))
		})
	})

	Describe("POST /ask/stream", func() {
		It("streams delta frames and a final done frame", func() {
			env.chatModel.Replies = []*schema.Message{schema.AssistantMessage("Hello!", nil)}

			resp := env.do(http.MethodPost, "/ask/stream", question("u1", "", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			defer resp.Body.Close()

			var frames []StreamFrame
			r := sse.NewReader(resp.Body)
			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
				var f StreamFrame
				Expect(json.Unmarshal([]byte(ev.Data), &f)).To(Succeed())
				frames = append(frames, f)
			}

			Expect(frames).NotTo(BeEmpty())
			last := frames[len(frames)-1]
			Expect(last.Done).To(BeTrue())
			Expect(last.Error).To(BeEmpty())
			Expect(last.ResponseTime).To(HaveSuffix("s"))

			var text strings.Builder
			for _, f := range frames[:len(frames)-1] {
				text.WriteString(f.Delta)
			}
			Expect(text.String()).To(Equal("Hello!"))
		})

		It("returns 404 before streaming for an unknown agent", func() {
			resp := env.do(http.MethodPost, "/ask/stream", question("u1", "Nobody", "hi"))
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("agent manager routes", func() {
		BeforeEach(func() {
			_, err := env.profiles.Insert(context.Background(), profile.Profile{
				Identity: profile.Identity{AgentName: "Ava"},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("initializes an agent once and reports it as loaded", func() {
			resp := env.do(http.MethodPost, "/initialize_agent", InitializeRequest{Name: "Ava"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			first := decode[InitializeResponse](resp)
			Expect(first.Status).To(Equal("success"))
			Expect(first.IsNew).To(BeTrue())

			resp = env.do(http.MethodPost, "/initialize_agent", InitializeRequest{Name: "Ava"})
			Expect(decode[InitializeResponse](resp).IsNew).To(BeFalse())

			listed := decode[AgentsResponse](env.do(http.MethodGet, "/list_agents", nil))
			Expect(listed.Agents).To(Equal([]string{"Ava"}))
			Expect(listed.CurrentAgent).To(Equal("Ava"))
		})

		It("rejects an unknown agent name", func() {
			resp := env.do(http.MethodPost, "/initialize_agent", InitializeRequest{Name: "Nobody"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("rejects a blank name", func() {
			resp := env.do(http.MethodPost, "/initialize_agent", InitializeRequest{Name: " "})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("chat history", func() {
		BeforeEach(func() {
			Expect(env.convs.Append(context.Background(),
				conversation.ThreadKey{UserID: "u1", ThreadID: "t1", AgentName: defaultAgent},
				conversation.Message{Role: "user", Content: "one"},
				conversation.Message{Role: "assistant", Content: "two"},
				conversation.Message{Role: "user", Content: "three"},
			)).To(Succeed())
		})

		It("pages the history newest first", func() {
			resp := env.do(http.MethodPost, "/v1/chat/history", ChatHistoryRequest{
				ThreadInfo: conversation.ThreadKey{UserID: "u1", ThreadID: "t1"},
				Page:       1,
				PageSize:   2,
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			page := decode[conversation.HistoryPage](resp)
			Expect(page.TotalCount).To(Equal(3))
			Expect(page.TotalPages).To(Equal(2))
			Expect(page.HasNextPage).To(BeTrue())
			Expect(page.Messages).To(HaveLen(2))
			Expect(page.Messages[1].Content).To(Equal("three"))
		})

		It("returns an empty page for an unknown thread", func() {
			resp := env.do(http.MethodPost, "/v1/chat/history", map[string]any{
				"thread_info": map[string]string{"user_id": "u2"},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			page := decode[conversation.HistoryPage](resp)
			Expect(page.Messages).To(BeEmpty())
			Expect(page.PageSize).To(Equal(5))
		})

		It("clears a thread once", func() {
			resp := env.do(http.MethodDelete, "/v1/chat/history", ClearHistoryRequest{UserID: "u1", ThreadID: "t1"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp = env.do(http.MethodDelete, "/v1/chat/history", ClearHistoryRequest{UserID: "u1", ThreadID: "t1"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	It("serves request metrics", func() {
		env.do(http.MethodGet, "/", nil)

		resp := env.do(http.MethodGet, "/metrics", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`xeleb_api_requests_total{route="/",status="200"} 1`))
	})
})
