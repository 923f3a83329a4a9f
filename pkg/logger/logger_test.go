package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records with attributes", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("agent loaded", "agent", "MISS CHINA AI")

			Expect(buf.String()).To(ContainSubstring("agent loaded"))
			Expect(buf.String()).To(ContainSubstring("MISS CHINA AI"))
		})

		It("filters debug records by default", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Debug("hidden")
			Expect(buf.String()).To(BeEmpty())
		})

		It("emits debug records when debug is on", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("visible")
			Expect(buf.String()).To(ContainSubstring("visible"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("search done", "results", 5)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("search done"))
			Expect(parsed["results"]).To(BeNumerically("==", 5))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("pretty output")
			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("fans out to multiple writers", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriters(&a, &b)).Info("both")
			Expect(a.String()).To(ContainSubstring("both"))
			Expect(b.String()).To(ContainSubstring("both"))
		})
	})

	Describe("WithLevel", func() {
		DescribeTable("parses level names",
			func(name string, dropped bool) {
				var buf bytes.Buffer
				logger.New(logger.WithWriter(&buf), logger.WithLevel(name)).Info("probe")
				if dropped {
					Expect(buf.String()).To(BeEmpty())
				} else {
					Expect(buf.String()).To(ContainSubstring("probe"))
				}
			},
			Entry("debug keeps info", "debug", false),
			Entry("info keeps info", "INFO", false),
			Entry("warn drops info", "warn", true),
			Entry("error drops info", "error", true),
			Entry("unknown keeps default", "chatty", false),
		)
	})

	Describe("Nop", func() {
		It("is disabled for every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() {
				l.With("key", "value").WithGroup("g").Error("msg")
			}).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to every logger", func() {
			var text, js bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			)
			multi.With("component", "api").Info("broadcast")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(decodeLine(&js)["component"]).To(Equal("api"))
		})

		It("nests groups", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
			multi.WithGroup("request").Info("processed", "method", "POST")

			group, ok := decodeLine(&buf)["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["method"]).To(Equal("POST"))
		})

		It("skips handlers that are disabled", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.Nop(), logger.New(logger.WithWriter(&buf)))
			multi.Info("only once")
			Expect(strings.Count(buf.String(), "only once")).To(Equal(1))
		})
	})
})
