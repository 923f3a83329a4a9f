package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})

	It("does not split multi-byte characters", func() {
		Expect(Truncate("中国小姐冠军", 2)).To(Equal("中国..."))
	})
})

var _ = Describe("Preview", func() {
	It("collapses whitespace and newlines", func() {
		Expect(Preview("  Crowned\n\nin 2018\tin Shenzhen ", 80)).To(Equal("Crowned in 2018 in Shenzhen"))
	})

	It("truncates the flattened text", func() {
		Expect(Preview("a\nb\nc\nd", 3)).To(Equal("a b..."))
	})
})
