package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/llm/openai"
	"github.com/xeleb-ai/xeleb/pkg/logger"
)

var _ = Describe("ChatModel", func() {
	var (
		server  *httptest.Server
		request map[string]any
		stream  bool
	)

	BeforeEach(func() {
		stream = false
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			request = map[string]any{}
			json.NewDecoder(r.Body).Decode(&request)

			if stream {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, part := range []string{"Hel", "lo"} {
					fmt.Fprintf(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
				}
				fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
				fmt.Fprint(w, "data: [DONE]\n\n")
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{
				"index":0,
				"finish_reason":"tool_calls",
				"message":{"role":"assistant","content":"","tool_calls":[
					{"id":"call_1","type":"function","function":{"name":"search_similar_texts","arguments":"{\"query\":\"crown\"}"}}
				]}
			}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		}))
		DeferCleanup(server.Close)
	})

	newModel := func() *openai.ChatModel {
		m, err := openai.NewChatModel(openai.Config{
			BaseURL:     server.URL + "/v1",
			APIKey:      "sk-test",
			Temperature: 0.9,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	It("requires a key or base URL", func() {
		_, err := openai.NewChatModel(openai.Config{}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("sends tools and parses tool calls", func() {
		m, err := newModel().WithTools([]*schema.ToolInfo{{
			Name: "search_similar_texts",
			Desc: "Search the knowledge base",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "search text", Required: true},
			}),
		}})
		Expect(err).NotTo(HaveOccurred())

		out, err := m.Generate(context.Background(), []*schema.Message{
			schema.SystemMessage("be nice"),
			schema.UserMessage("tell me about the crown"),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Role).To(Equal(schema.Assistant))
		Expect(out.ToolCalls).To(HaveLen(1))
		Expect(out.ToolCalls[0].ID).To(Equal("call_1"))
		Expect(out.ToolCalls[0].Function.Name).To(Equal("search_similar_texts"))
		Expect(out.ToolCalls[0].Function.Arguments).To(Equal(`{"query":"crown"}`))
		Expect(out.ResponseMeta.FinishReason).To(Equal("tool_calls"))
		Expect(out.ResponseMeta.Usage.TotalTokens).To(Equal(15))

		Expect(request).To(HaveKeyWithValue("model", openai.DefaultModel))
		Expect(request["temperature"]).To(BeNumerically("~", 0.9, 0.001))
		Expect(request["messages"]).To(HaveLen(2))
		tools, ok := request["tools"].([]any)
		Expect(ok).To(BeTrue())
		Expect(tools).To(HaveLen(1))
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		Expect(fn["name"]).To(Equal("search_similar_texts"))
		Expect(fn["parameters"]).To(HaveKey("properties"))
	})

	It("does not share tools with the original model", func() {
		base := newModel()
		_, err := base.WithTools([]*schema.ToolInfo{{Name: "noop", Desc: "nothing"}})
		Expect(err).NotTo(HaveOccurred())

		_, err = base.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		Expect(err).NotTo(HaveOccurred())
		Expect(request).NotTo(HaveKey("tools"))
	})

	It("streams content chunks", func() {
		stream = true
		sr, err := newModel().Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		Expect(err).NotTo(HaveOccurred())
		defer sr.Close()

		var chunks []*schema.Message
		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			chunks = append(chunks, msg)
		}

		full, err := schema.ConcatMessages(chunks)
		Expect(err).NotTo(HaveOccurred())
		Expect(full.Content).To(Equal("Hello"))
		Expect(full.ResponseMeta.FinishReason).To(Equal("stop"))
		Expect(request).To(HaveKeyWithValue("stream", true))
	})
})
