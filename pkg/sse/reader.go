package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader parses SSE frames from a stream. When built with NewTeeReader every
// raw line is also copied to a destination writer.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	current Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that copies the raw bytes it
// consumes to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner, dest: dest}
}

// Next blocks until a full frame is read. It returns nil, nil once src is
// exhausted; a trailing frame without its blank line is still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		if r.dest != nil {
			if _, err := io.WriteString(r.dest, line+"\n"); err != nil {
				return nil, err
			}
		}

		switch {
		case line == "":
			if r.hasData {
				return r.flush(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment or keep-alive
		default:
			r.field(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.hasData {
		return r.flush(), nil
	}
	return nil, nil
}

func (r *Reader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
	case "event":
		r.current.Type = value
	case "id":
		r.current.ID = value
	default:
		return
	}
	r.hasData = true
}

func (r *Reader) flush() *Event {
	ev := r.current
	r.current = Event{}
	r.hasData = false
	return &ev
}
