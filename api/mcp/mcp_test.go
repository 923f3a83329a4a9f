package mcp_test

import (
	"context"
	"encoding/json"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/api/mcp"
	apisearch "github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/memory/local"
	"github.com/xeleb-ai/xeleb/pkg/profile"
	profileinmemory "github.com/xeleb-ai/xeleb/pkg/profile/inmemory"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

func textOf(res *sdk.CallToolResult) string {
	Expect(res.Content).NotTo(BeEmpty())
	text, ok := res.Content[0].(*sdk.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		searcher *apisearch.Searcher
		profiles *profileinmemory.Store
		mem      *local.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()

		vectors := testutils.NewMockVectorDriver()
		vectors.Results = []vector.QueryResult{{
			Document: vector.Document{ID: "1", Text: "The crown is gold.", Payload: map[string]any{"filename": "crown.md"}},
			Score:    0.9,
		}}
		searcher = apisearch.NewSearcher(testutils.NewMockEmbedder(), vectors, testutils.NewMockReranker(), logger.Nop())

		profiles = profileinmemory.NewStore()
		_, err := profiles.Insert(ctx, profile.Profile{
			Identity: profile.Identity{AgentName: "Ava", Bio: "A singer."},
			Behavior: profile.Behavior{
				Topic:              []string{"music"},
				CommunicationStyle: profile.DefaultCommunicationStyle(),
			},
		})
		Expect(err).NotTo(HaveOccurred())

		mem = local.NewDriver(local.Config{Enabled: true})
	})

	Describe("NewServer", func() {
		It("returns an error when the searcher is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Profiles: profiles, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("searcher is required")))
		})

		It("returns an error when the profile store is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("profile store is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Searcher: searcher, Profiles: profiles})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("builds an empty server in noop mode", func() {
			s, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		var session *sdk.ClientSession

		connect := func(cfg mcp.Config) {
			s, err := mcp.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			serverT, clientT := sdk.NewInMemoryTransports()
			_, err = s.MCPServer().Connect(ctx, serverT, nil)
			Expect(err).NotTo(HaveOccurred())

			client := sdk.NewClient(&sdk.Implementation{Name: "test", Version: "v0.0.1"}, nil)
			session, err = client.Connect(ctx, clientT, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Close)
		}

		call := func(name string, args map[string]any) *sdk.CallToolResult {
			res, err := session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
			Expect(err).NotTo(HaveOccurred())
			return res
		}

		BeforeEach(func() {
			connect(mcp.Config{Searcher: searcher, Profiles: profiles, Memory: mem, Logger: logger.Nop()})
		})

		It("lists every tool", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("search_knowledge", "get_agent_profile", "recall_memory"))
		})

		It("searches the knowledge base", func() {
			res := call("search_knowledge", map[string]any{"query": "crown", "top_n": 1})
			Expect(res.IsError).To(BeFalse())

			var out mcp.SearchOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Passages[0].Source).To(Equal("crown.md"))
			Expect(out.Passages[0].Text).To(Equal("The crown is gold."))
		})

		It("returns a profile with its system prompt", func() {
			res := call("get_agent_profile", map[string]any{"name": "Ava"})
			Expect(res.IsError).To(BeFalse())

			var out mcp.ProfileOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.AgentName).To(Equal("Ava"))
			Expect(out.Topics).To(Equal([]string{"music"}))
			Expect(out.Rules).To(BeEmpty())
			Expect(out.SystemPrompt).To(ContainSubstring("You are Ava."))
		})

		It("reports an unknown agent as a tool error", func() {
			res := call("get_agent_profile", map[string]any{"name": "Nobody"})
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("not found"))
		})

		It("recalls the facts of one user and agent", func() {
			Expect(mem.Store(ctx, memory.Turn{
				UserID: "u1", ThreadID: "t1", AgentName: "Ava",
				Question: "my cat is Tom", Answer: "Nice!", At: time.Now(),
			})).To(Succeed())

			res := call("recall_memory", map[string]any{"user_id": "u1", "agent_name": "Ava"})
			Expect(res.IsError).To(BeFalse())

			var out mcp.MemoryRecallOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Facts).To(HaveLen(1))
			Expect(out.Facts[0].Content).To(ContainSubstring("my cat is Tom"))

			res = call("recall_memory", map[string]any{"user_id": "u2", "agent_name": "Ava"})
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Facts).To(BeEmpty())
		})
	})
})
