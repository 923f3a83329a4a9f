package crossencoder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/rerank"
	"github.com/xeleb-ai/xeleb/pkg/rerank/crossencoder"
)

var _ = Describe("Reranker", func() {
	var (
		server   *httptest.Server
		path     string
		auth     string
		request  map[string]any
		response string
		status   int
		delay    time.Duration
		passages []rerank.Passage
	)

	BeforeEach(func() {
		status = http.StatusOK
		delay = 0
		response = `{"results":[{"index":2,"relevance_score":0.97},{"index":0,"relevance_score":0.41},{"index":1,"relevance_score":0.03}]}`
		passages = []rerank.Passage{
			{ID: "1", Text: "Lisa likes cats.", Meta: map[string]any{"filename": "lisa.md"}, Score: 0.8},
			{ID: "2", Text: "Bangkok weather.", Score: 0.7},
			{ID: "3", Text: "Lisa was born in 1997.", Score: 0.6},
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			auth = r.Header.Get("Authorization")
			request = map[string]any{}
			json.NewDecoder(r.Body).Decode(&request)
			time.Sleep(delay)
			w.WriteHeader(status)
			w.Write([]byte(response))
		}))
		DeferCleanup(server.Close)
	})

	It("requires a base URL", func() {
		_, err := crossencoder.New(crossencoder.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("orders passages by relevance score", func() {
		r, err := crossencoder.New(crossencoder.Config{BaseURL: server.URL, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())

		out, err := r.Rerank(context.Background(), "when was Lisa born?", passages)
		Expect(err).NotTo(HaveOccurred())

		Expect(path).To(Equal("/v1/rerank"))
		Expect(auth).To(Equal("Bearer k"))
		Expect(request).To(HaveKeyWithValue("query", "when was Lisa born?"))
		Expect(request).To(HaveKeyWithValue("model", crossencoder.DefaultModel))
		Expect(request).To(HaveKeyWithValue("top_n", BeNumerically("==", 3)))

		Expect(out).To(HaveLen(3))
		Expect(out[0].ID).To(Equal("3"))
		Expect(out[0].Score).To(Equal(float32(0.97)))
		Expect(out[1].ID).To(Equal("1"))
		Expect(out[1].Meta).To(HaveKeyWithValue("filename", "lisa.md"))
	})

	It("appends only /rerank to a /v1 base URL", func() {
		r, _ := crossencoder.New(crossencoder.Config{BaseURL: server.URL + "/v1/"})
		_, err := r.Rerank(context.Background(), "q", passages)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/v1/rerank"))
		Expect(auth).To(BeEmpty())
	})

	It("skips the call for no passages", func() {
		r, _ := crossencoder.New(crossencoder.Config{BaseURL: server.URL})
		path = ""
		out, err := r.Rerank(context.Background(), "q", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
		Expect(path).To(BeEmpty())
	})

	It("ignores out of range and duplicate indexes", func() {
		response = `{"results":[{"index":9,"relevance_score":0.9},{"index":1,"relevance_score":0.5},{"index":1,"relevance_score":0.4}]}`
		r, _ := crossencoder.New(crossencoder.Config{BaseURL: server.URL})
		out, err := r.Rerank(context.Background(), "q", passages)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].ID).To(Equal("2"))
	})

	It("returns ErrRerank on HTTP errors", func() {
		status = http.StatusServiceUnavailable
		response = "loading model"
		r, _ := crossencoder.New(crossencoder.Config{BaseURL: server.URL})
		_, err := r.Rerank(context.Background(), "q", passages)
		Expect(err).To(MatchError(rerank.ErrRerank))
		Expect(err.Error()).To(ContainSubstring("503"))
	})

	It("times out", func() {
		delay = 200 * time.Millisecond
		r, _ := crossencoder.New(crossencoder.Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
		_, err := r.Rerank(context.Background(), "q", passages)
		Expect(err).To(MatchError(rerank.ErrRerank))
	})
})
