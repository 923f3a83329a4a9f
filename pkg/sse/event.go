// Package sse reads and writes Server-Sent Events frames. The API server
// writes them for streamed answers and the chat client reads them back.
//
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"fmt"
	"io"
	"strings"
)

// Event is one SSE frame, delimited by a blank line.
type Event struct {
	// Type is the "event:" field. Empty means "message".
	Type string

	// Data joins every "data:" line of the frame with "\n".
	Data string

	ID string
}

// Write encodes ev as a frame on w. Multi-line data is split across several
// "data:" lines.
func Write(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	for line := range strings.SplitSeq(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
