package console

import (
	"io"
	"strings"
	"sync"
)

// WriterSink renders the console view to an io.Writer, typically a
// terminal. A full render clears the screen and reprints the snapshot;
// an append writes only the new lines. Auto-scroll is implicit for a
// terminal and the flag is ignored.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// FullRender implements Sink.
func (s *WriterSink) FullRender(lines []string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("\033[2J\033[H") // clear screen, cursor home
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	_, err := io.WriteString(s.w, sb.String())
	return err
}

// AppendLines implements Sink.
func (s *WriterSink) AppendLines(lines []string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	_, err := io.WriteString(s.w, sb.String())
	return err
}
