package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/xeleb-ai/xeleb/api"
	chatcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/chat"
	"github.com/xeleb-ai/xeleb/pkg/agent"
	"github.com/xeleb-ai/xeleb/pkg/dotdir"
)

// fakeAPI records questions and streams a fixed reply.
type fakeAPI struct {
	mu        sync.Mutex
	questions []agent.Question
	cleared   []api.ClearHistoryRequest
	agents    []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /initialize_agent", func(w http.ResponseWriter, r *http.Request) {
		var req api.InitializeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Name == "Nobody" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "agent not found"})
			return
		}
		f.mu.Lock()
		f.agents = append(f.agents, req.Name)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(api.InitializeResponse{Status: "success", Message: req.Name + " initialized", IsNew: true})
	})

	mux.HandleFunc("POST /ask/stream", func(w http.ResponseWriter, r *http.Request) {
		var q agent.Question
		_ = json.NewDecoder(r.Body).Decode(&q)
		f.mu.Lock()
		f.questions = append(f.questions, q)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range []api.StreamFrame{
			{Delta: "Hello"},
			{Delta: " there"},
			{Done: true, ResponseTime: "0.42s"},
		} {
			raw, _ := json.Marshal(frame)
			fmt.Fprintf(w, "data: %s\n\n", raw)
		}
	})

	mux.HandleFunc("DELETE /v1/chat/history", func(w http.ResponseWriter, r *http.Request) {
		var req api.ClearHistoryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.cleared = append(f.cleared, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "no conversation history found"})
	})

	mux.HandleFunc("GET /list_agents", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.AgentsResponse{Agents: []string{"MISS CHINA AI", "Rex"}, CurrentAgent: "Rex"})
	})

	return mux
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "xeleb", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(chatcmder.NewChatCmd())
	return root
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("registers the client flags", func() {
		cmd := chatcmder.NewChatCmd()
		for _, name := range []string{"api-target", "user-id", "agent", "thread", "markdown"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("api-target").DefValue).To(Equal("http://localhost:7888"))
	})
})

var _ = Describe("chat session", func() {
	var (
		fake      *fakeAPI
		server    *httptest.Server
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		fake = &fakeAPI{}
		server = httptest.NewServer(fake.handler())
		DeferCleanup(server.Close)
		configDir = filepath.Join(GinkgoT().TempDir(), ".xeleb")
		out = &bytes.Buffer{}
	})

	run := func(input string, args ...string) error {
		root := newRoot()
		root.SetArgs(append([]string{"chat", "--api-target", server.URL, "--config-dir", configDir}, args...))
		root.SetIn(strings.NewReader(input))
		root.SetOut(out)
		root.SetErr(out)
		return root.Execute()
	}

	It("streams the answer and remembers the thread", func() {
		Expect(run("hello\n/exit\n", "--user-id", "fan-1", "--thread", "t-9")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Hello there"))
		Expect(out.String()).To(ContainSubstring("0.42s"))
		Expect(fake.questions).To(HaveLen(1))
		Expect(fake.questions[0].Question).To(Equal("hello"))
		Expect(fake.questions[0].UserThread.UserID).To(Equal("fan-1"))
		Expect(fake.questions[0].UserThread.ThreadID).To(Equal("t-9"))
		Expect(fake.questions[0].UserThread.AgentName).To(Equal("MISS CHINA AI"))

		session, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).To(Equal(&dotdir.Session{UserID: "fan-1", ThreadID: "t-9", AgentName: "MISS CHINA AI"}))
	})

	It("continues the saved session when no flags are given", func() {
		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())
		Expect(dotdir.NewManager().SaveSession(&dotdir.Session{
			UserID: "fan-2", ThreadID: "old", AgentName: "Rex",
		}, configDir)).To(Succeed())

		Expect(run("hi\n")).To(Succeed())
		Expect(fake.agents).To(Equal([]string{"Rex"}))
		Expect(fake.questions[0].UserThread.UserID).To(Equal("fan-2"))
		Expect(fake.questions[0].UserThread.ThreadID).To(Equal("old"))
	})

	It("switches agents with /agent", func() {
		Expect(run("/agent Rex\nhi\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Rex initialized"))
		Expect(fake.questions[0].UserThread.AgentName).To(Equal("Rex"))
	})

	It("keeps the current agent when /agent fails", func() {
		Expect(run("/agent Nobody\nhi\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("agent not found"))
		Expect(fake.questions[0].UserThread.AgentName).To(Equal("MISS CHINA AI"))
	})

	It("reports an empty thread on /reset", func() {
		Expect(run("/reset\n", "--user-id", "fan-3")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Nothing to reset."))
		Expect(fake.cleared).To(Equal([]api.ClearHistoryRequest{{UserID: "fan-3", ThreadID: "1234"}}))
	})

	It("lists agents and marks the current one", func() {
		Expect(run("/agents\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("* MISS CHINA AI"))
		Expect(out.String()).To(ContainSubstring("Rex"))
	})

	It("rejects unknown slash commands without asking", func() {
		Expect(run("/dance\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("unknown command /dance"))
		Expect(fake.questions).To(BeEmpty())
	})
})
