package metrics_test

import (
	"io"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	It("is a no-op on nil", func() {
		var m *metrics.Metrics
		Expect(func() {
			m.ObserveRequest("/ask", "200", time.Now())
			m.ObserveStage("embed", time.Now())
			m.RerankFallback()
			m.ToolCall("search_similar_texts", "ok")
			m.SetQueueDepth(3)
			m.JobDropped()
			m.TurnEvent("published")
			m.Ingested("ok")
		}).NotTo(Panic())
		Expect(m.Registry()).To(BeNil())
	})

	It("exposes recorded values in the text format", func() {
		m := metrics.New()
		m.ObserveRequest("/ask", "200", time.Now())
		m.ObserveStage("rerank", time.Now())
		m.RerankFallback()
		m.JobDropped()

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())

		text := string(body)
		Expect(text).To(ContainSubstring(`xeleb_api_requests_total{route="/ask",status="200"} 1`))
		Expect(text).To(ContainSubstring(`xeleb_retrieval_stage_duration_seconds_count{stage="rerank"} 1`))
		Expect(text).To(ContainSubstring("xeleb_retrieval_rerank_fallbacks_total 1"))
		Expect(text).To(ContainSubstring("xeleb_worker_jobs_dropped_total 1"))
		Expect(text).To(ContainSubstring("go_goroutines"))
	})
})
