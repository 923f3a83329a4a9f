package semantic_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/logger"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/memory/semantic"
	testutils "github.com/xeleb-ai/xeleb/pkg/utils/test"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

func hit(text, user, agent string, score float32) vector.QueryResult {
	return vector.QueryResult{
		Document: vector.Document{
			ID:   text,
			Text: text,
			Payload: map[string]any{
				semantic.PayloadUserID:    user,
				semantic.PayloadAgentName: agent,
				semantic.PayloadThreadID:  "t9",
				semantic.PayloadAt:        "2026-01-02T03:04:05Z",
			},
		},
		Score: score,
	}
}

var _ = Describe("Semantic Memory Driver", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		vectors  *testutils.MockVectorDriver
		driver   *semantic.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		vectors = testutils.NewMockVectorDriver()

		var err error
		driver, err = semantic.NewDriver(embedder, vectors, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires its dependencies", func() {
		_, err := semantic.NewDriver(nil, vectors, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("embeds and stores turns with their scope", func() {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		Expect(driver.Store(ctx, memory.Turn{
			UserID: "u1", ThreadID: "t1", AgentName: "Ava",
			Question: "my dog is Rex", Answer: "Nice name!", At: at,
		})).To(Succeed())

		Expect(vectors.DocumentCount()).To(Equal(1))
		Expect(embedder.Calls).To(Equal([]string{"User: my dog is Rex\nAssistant: Nice name!"}))
		for _, doc := range vectors.Documents {
			Expect(doc.Payload).To(HaveKeyWithValue(semantic.PayloadUserID, "u1"))
			Expect(doc.Payload).To(HaveKeyWithValue(semantic.PayloadAgentName, "Ava"))
			Expect(doc.Payload).To(HaveKeyWithValue(semantic.PayloadAt, "2026-01-02T03:04:05Z"))
		}
	})

	It("skips empty turns", func() {
		Expect(driver.Store(ctx, memory.Turn{UserID: "u1"})).To(Succeed())
		Expect(vectors.DocumentCount()).To(BeZero())
	})

	It("recalls only facts from the scope", func() {
		vectors.Results = []vector.QueryResult{
			hit("other user", "u2", "Ava", 0.9),
			hit("mine", "u1", "Ava", 0.8),
			hit("other agent", "u1", "Bo", 0.7),
			hit("mine too", "u1", "Ava", 0.6),
		}

		facts, err := driver.Recall(ctx, memory.Scope{UserID: "u1", AgentName: "Ava"}, "dog", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(HaveLen(1))
		Expect(facts[0].Content).To(Equal("mine"))
		Expect(facts[0].ThreadID).To(Equal("t9"))
		Expect(facts[0].At.Year()).To(Equal(2026))
		Expect(vectors.LastQuery.TopK).To(Equal(1))
		Expect(vectors.LastQuery.Filter).To(Equal(map[string]string{
			semantic.PayloadUserID:    "u1",
			semantic.PayloadAgentName: "Ava",
		}))
	})

	It("recalls the scope's facts when other users' turns score higher", func() {
		for i := range 20 {
			vectors.Results = append(vectors.Results, hit("someone else", "u2", "Ava", 0.99-float32(i)*0.01))
		}
		vectors.Results = append(vectors.Results, hit("my dog is Rex", "u1", "Ava", 0.5))

		facts, err := driver.Recall(ctx, memory.Scope{UserID: "u1", AgentName: "Ava"}, "dog", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(HaveLen(1))
		Expect(facts[0].Content).To(Equal("my dog is Rex"))
	})

	It("skips recall for empty queries", func() {
		facts, err := driver.Recall(ctx, memory.Scope{UserID: "u1"}, "", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(BeNil())
		Expect(vectors.Queries).To(BeZero())
	})
})
