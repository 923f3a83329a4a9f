package search_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/api/search"
	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/rerank/passthrough"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

func hit(id string, score float32, text string) vector.QueryResult {
	return vector.QueryResult{
		Document: vector.Document{
			ID:      id,
			Text:    text,
			Payload: map[string]any{"filename": id + ".md", "file_path": "dataset/" + id + ".md"},
		},
		Score: score,
	}
}

func ptr(f float32) *float32 { return &f }

var _ = Describe("Searcher", func() {
	var (
		vectorDriver *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
		reranker     *testutils.MockReranker
		ctx          context.Context
		searcher     *search.Searcher
	)

	BeforeEach(func() {
		vectorDriver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		reranker = testutils.NewMockReranker()
		ctx = context.Background()
		searcher = search.NewSearcher(embedder, vectorDriver, reranker, logger.Nop(), search.WithMetrics(metrics.New()))
	})

	It("returns empty results without reranking when nothing matches", func() {
		out, err := searcher.Search(ctx, "hello", search.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Query).To(Equal("hello"))
		Expect(out.Count).To(Equal(0))
		Expect(out.Results).NotTo(BeNil())
		Expect(out.Results).To(BeEmpty())
		Expect(reranker.Calls).To(Equal(0))
	})

	It("asks the vector store for seven candidates by default", func() {
		_, err := searcher.Search(ctx, "hello", search.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectorDriver.LastQuery.TopK).To(Equal(7))
		Expect(vectorDriver.LastQuery.ScoreThreshold).To(BeNil())
		Expect(embedder.Calls).To(Equal([]string{"hello"}))
	})

	It("passes the score threshold to the vector store", func() {
		_, err := searcher.Search(ctx, "hello", search.Options{Limit: 3, ScoreThreshold: ptr(0.4)})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectorDriver.LastQuery.TopK).To(Equal(3))
		Expect(*vectorDriver.LastQuery.ScoreThreshold).To(Equal(float32(0.4)))
	})

	Context("with candidates", func() {
		BeforeEach(func() {
			for i := 1; i <= 7; i++ {
				id := fmt.Sprintf("%d", i)
				vectorDriver.Results = append(vectorDriver.Results, hit(id, 1-float32(i)/10, "passage "+id))
			}
		})

		It("reranks and keeps the top five", func() {
			reranker.Scores = map[string]float32{"7": 0.99, "6": 0.95, "1": 0.5, "2": 0.4, "3": 0.3, "4": 0.2, "5": 0.1}

			out, err := searcher.Search(ctx, "who is Lisa?", search.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(reranker.LastQuery).To(Equal("who is Lisa?"))
			Expect(out.Reranked).To(BeTrue())
			Expect(out.Count).To(Equal(5))

			ids := []string{}
			for _, r := range out.Results {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]string{"7", "6", "1", "2", "3"}))
			Expect(out.Results[0].Score).To(Equal(float32(0.99)))
		})

		It("moves text out of the payload and keeps the rest", func() {
			out, err := searcher.Search(ctx, "q", search.Options{TopN: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(1))
			r := out.Results[0]
			Expect(r.Text).To(Equal("passage 1"))
			Expect(r.Payload).To(HaveKeyWithValue("filename", "1.md"))
			Expect(r.Payload).To(HaveKeyWithValue("file_path", "dataset/1.md"))
			Expect(r.Payload).NotTo(HaveKey("text"))
		})

		It("falls back to vector order when the reranker fails", func() {
			reranker.Err = errors.New("cross-encoder down")

			out, err := searcher.Search(ctx, "q", search.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Reranked).To(BeFalse())
			Expect(out.Count).To(Equal(5))
			Expect(out.Results[0].ID).To(Equal("1"))
			Expect(out.Results[0].Score).To(BeNumerically("~", 0.9, 1e-6))
		})

		It("drops passages under the minimum rerank score", func() {
			reranker.Scores = map[string]float32{"1": 0.9, "2": 0.8, "3": 0.1, "4": 0.1, "5": 0.1, "6": 0.1, "7": 0.1}

			out, err := searcher.Search(ctx, "q", search.Options{MinRerankScore: ptr(0.5)})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(2))
		})

		It("ignores the minimum rerank score when reranking is disabled", func() {
			searcher = search.NewSearcher(embedder, vectorDriver, passthrough.New(), logger.Nop())

			out, err := searcher.Search(ctx, "q", search.Options{MinRerankScore: ptr(0.85)})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Reranked).To(BeFalse())
			Expect(out.Count).To(Equal(5))
			Expect(out.Results[0].ID).To(Equal("1"))
		})

		It("uses searcher defaults for unset options", func() {
			searcher = search.NewSearcher(embedder, vectorDriver, nil, logger.Nop(),
				search.WithDefaults(search.Options{Limit: 4, TopN: 2}))

			out, err := searcher.Search(ctx, "q", search.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(vectorDriver.LastQuery.TopK).To(Equal(4))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].ID).To(Equal("1"))
		})
	})

	It("returns embedding failures", func() {
		embedder.FailOn = "broken"
		_, err := searcher.Search(ctx, "broken", search.Options{})
		Expect(err).To(MatchError(ContainSubstring("failed to embed query")))
		Expect(vectorDriver.Queries).To(Equal(0))
	})

	It("returns vector store failures", func() {
		vectorDriver.QueryErr = vector.ErrConnection
		_, err := searcher.Search(ctx, "q", search.Options{})
		Expect(err).To(MatchError(vector.ErrConnection))
	})

	Describe("FormatResults", func() {
		It("numbers passages and names their files", func() {
			text := search.FormatResults([]search.Result{
				{ID: "1", Text: "Lisa was born in 1997.", Payload: map[string]any{"filename": "lisa.md"}},
				{ID: "2", Text: "No file.", Payload: map[string]any{}},
			})
			Expect(text).To(Equal("[1] (lisa.md) Lisa was born in 1997.\n[2] No file.\n"))
		})

		It("says when nothing was found", func() {
			Expect(search.FormatResults(nil)).To(ContainSubstring("No relevant information"))
		})
	})
})
