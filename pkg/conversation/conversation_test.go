package conversation_test

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

func messages(n int) []conversation.Message {
	msgs := make([]conversation.Message, 0, n)
	for i := 1; i <= n; i++ {
		role := conversation.RoleUser
		if i%2 == 0 {
			role = conversation.RoleAssistant
		}
		msgs = append(msgs, conversation.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return msgs
}

var _ = Describe("ThreadKey", func() {
	It("fills the default thread and agent", func() {
		k := conversation.ThreadKey{UserID: "u1"}.WithDefaults("MISS CHINA AI")
		Expect(k.ThreadID).To(Equal(conversation.DefaultThreadID))
		Expect(k.AgentName).To(Equal("MISS CHINA AI"))
	})

	It("keeps explicit values", func() {
		k := conversation.ThreadKey{UserID: "u1", ThreadID: "t", AgentName: "a"}.WithDefaults("b")
		Expect(k).To(Equal(conversation.ThreadKey{UserID: "u1", ThreadID: "t", AgentName: "a"}))
	})
})

var _ = Describe("FormatRecent", func() {
	It("formats the last two messages with capitalized roles", func() {
		conv := &conversation.Conversation{Messages: messages(4)}
		out, err := conversation.FormatRecent(conv, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("User: m3\nAssistant: m4"))
	})

	It("normalizes role casing", func() {
		conv := &conversation.Conversation{Messages: []conversation.Message{{Role: "ASSISTANT", Content: "hi"}}}
		out, err := conversation.FormatRecent(conv, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Assistant: hi"))
	})

	It("returns everything when fewer messages exist", func() {
		conv := &conversation.Conversation{Messages: messages(1)}
		out, err := conversation.FormatRecent(conv, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("User: m1"))
	})

	It("returns an empty string for an empty list", func() {
		out, err := conversation.FormatRecent(&conversation.Conversation{Messages: []conversation.Message{}}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("rejects conversations without a message list", func() {
		_, err := conversation.FormatRecent(&conversation.Conversation{}, 2)
		Expect(errors.Is(err, conversation.ErrInvalidConversation)).To(BeTrue())

		_, err = conversation.FormatRecent(nil, 2)
		Expect(err).To(MatchError(conversation.ErrInvalidConversation))
	})
})

var _ = Describe("Page", func() {
	conv := &conversation.Conversation{Messages: messages(12)}

	It("returns the newest messages on page one in chronological order", func() {
		p := conversation.Page(conv, 1, 5)
		Expect(p.Messages).To(HaveLen(5))
		Expect(p.Messages[0].Content).To(Equal("m8"))
		Expect(p.Messages[4].Content).To(Equal("m12"))
		Expect(p.TotalPages).To(Equal(3))
		Expect(p.TotalCount).To(Equal(12))
		Expect(p.HasNextPage).To(BeTrue())
	})

	It("returns the remainder on the last page", func() {
		p := conversation.Page(conv, 3, 5)
		Expect(p.Messages).To(HaveLen(2))
		Expect(p.Messages[0].Content).To(Equal("m1"))
		Expect(p.HasNextPage).To(BeFalse())
	})

	It("returns an empty page past the end", func() {
		p := conversation.Page(conv, 4, 5)
		Expect(p.Messages).To(BeEmpty())
		Expect(p.Messages).NotTo(BeNil())
	})

	It("clamps invalid arguments", func() {
		p := conversation.Page(conv, 0, 0)
		Expect(p.Page).To(Equal(1))
		Expect(p.PageSize).To(Equal(5))
	})

	It("handles a missing conversation", func() {
		p := conversation.Page(nil, 1, 5)
		Expect(p.TotalPages).To(BeZero())
		Expect(p.Messages).To(BeEmpty())
	})
})

var _ = Describe("ExportTranscript", func() {
	It("writes a header and the trailing messages of each conversation", func() {
		created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
		convs := []*conversation.Conversation{
			{ID: "c1", UserID: "u1", ThreadID: "t1", AgentName: "MISS CHINA AI", Messages: messages(3), CreatedAt: created},
			{UserID: "u2", Messages: []conversation.Message{}},
		}

		var buf bytes.Buffer
		Expect(conversation.ExportTranscript(&buf, convs, 2)).To(Succeed())

		out := buf.String()
		Expect(out).To(ContainSubstring("Conversation #1"))
		Expect(out).To(ContainSubstring("- ID: c1\n"))
		Expect(out).To(ContainSubstring("- Agent Name: MISS CHINA AI\n"))
		Expect(out).To(ContainSubstring("- Total Messages: 3\n"))
		Expect(out).To(ContainSubstring("- Created At: 2025-03-01 10:30:00\n"))
		Expect(out).NotTo(ContainSubstring("- User: m1\n"))
		Expect(out).To(ContainSubstring("- Assistant: m2\n- User: m3\n"))

		Expect(out).To(ContainSubstring("Conversation #2"))
		Expect(out).To(ContainSubstring("- ID: N/A\n"))
		Expect(out).To(ContainSubstring("- Created At: N/A\n"))
	})
})
