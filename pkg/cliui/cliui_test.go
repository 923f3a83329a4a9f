package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("returns the error of fn and prints the message", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "ingesting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("ingesting"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})
})

var _ = Describe("KeyValue", func() {
	It("prints a placeholder for empty values", func() {
		var buf bytes.Buffer
		cliui.KeyValue(&buf, 10, "llm.model", "")
		Expect(buf.String()).To(ContainSubstring("<not set>"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the document", func() {
		out, err := cliui.RenderMarkdown("# Crown\n\nShe won in 2018.")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("2018"))
	})
})
