package conversation

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultRecentMessages is how many trailing messages FormatRecent includes.
const DefaultRecentMessages = 2

// FormatRecent renders the last n messages as "Role: content" lines. A nil
// conversation or one without a message list is invalid.
func FormatRecent(conv *Conversation, n int) (string, error) {
	if conv == nil || conv.Messages == nil {
		return "", ErrInvalidConversation
	}
	if n <= 0 {
		n = DefaultRecentMessages
	}

	msgs := conv.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, capitalize(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n"), nil
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

// HistoryPage is one page of chat history.
type HistoryPage struct {
	Messages    []Message `json:"messages"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
	TotalPages  int       `json:"total_pages"`
	TotalCount  int       `json:"total_messages"`
	HasNextPage bool      `json:"has_next_page"`
}

// Page returns page (1-based) of the history, newest first: page 1 holds the
// most recent pageSize messages. Messages within a page keep chronological
// order. Pages past the end are empty.
func Page(conv *Conversation, page, pageSize int) HistoryPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 5
	}

	var msgs []Message
	if conv != nil {
		msgs = conv.Messages
	}
	total := len(msgs)

	out := HistoryPage{
		Messages:   []Message{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	end := total - (page-1)*pageSize
	if end <= 0 {
		return out
	}
	start := max(end-pageSize, 0)

	out.Messages = append(out.Messages, msgs[start:end]...)
	out.HasNextPage = start > 0
	return out
}

const transcriptRule = "-----------------------------"

// ExportTranscript writes a plain text transcript of convs, including at most
// lastN trailing messages of each. lastN <= 0 writes every message.
func ExportTranscript(w io.Writer, convs []*Conversation, lastN int) error {
	for idx, c := range convs {
		msgs := c.Messages
		if lastN > 0 && len(msgs) > lastN {
			msgs = msgs[len(msgs)-lastN:]
		}

		var b strings.Builder
		fmt.Fprintf(&b, "\n%s Conversation #%d %s\n", transcriptRule, idx+1, transcriptRule)
		fmt.Fprintf(&b, "- ID: %s\n", orNA(c.ID))
		fmt.Fprintf(&b, "- User ID: %s\n", orNA(c.UserID))
		fmt.Fprintf(&b, "- Thread ID: %s\n", orNA(c.ThreadID))
		fmt.Fprintf(&b, "- Agent Name: %s\n", orNA(c.AgentName))
		fmt.Fprintf(&b, "- Total Messages: %d\n", len(c.Messages))
		fmt.Fprintf(&b, "- Created At: %s\n", createdAt(c.CreatedAt))
		for _, m := range msgs {
			fmt.Fprintf(&b, "- %s: %s\n", capitalize(m.Role), m.Content)
		}

		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("writing transcript: %w", err)
		}
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func createdAt(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
