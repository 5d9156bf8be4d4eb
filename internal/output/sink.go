package output

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const separatorTimeFormat = "2006-01-02 15:04:05"

// Sink is an append-only log file mirror for process output. Writes are
// unbuffered so each line reaches the OS immediately. All failures are
// logged and swallowed - losing the log must never abort the supervised
// process.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *slog.Logger
}

// NewSink creates a sink for the given path. The file is not opened until
// Open is called; writes while closed are dropped.
func NewSink(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

// Open opens the log file in append mode.
func (s *Sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", s.path, err)
	}
	s.file = f
	s.logger.Debug("Opened log file", "path", s.path)
	return nil
}

// WriteLine appends one line to the log file. No-op while closed.
func (s *Sink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}
	if _, err := s.file.WriteString(line + "\n"); err != nil {
		s.logger.Error("Error writing to log file", "error", err)
	}
}

// WriteSeparator writes a separator block bracketing a lifecycle action,
// for post-mortem readability of the persisted log.
func (s *Sink) WriteSeparator(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}
	block := strings.Join(SeparatorLines(action), "\n") + "\n"
	if _, err := s.file.WriteString(block); err != nil {
		s.logger.Error("Error writing separator to log file", "error", err)
	}
}

// Close closes the log file if it is open.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}
	if err := s.file.Close(); err != nil {
		s.logger.Error("Error closing log file", "error", err)
	}
	s.file = nil
	s.logger.Debug("Closed log file")
}

// SeparatorLines returns the three lines of a lifecycle separator block.
func SeparatorLines(action string) []string {
	rule := strings.Repeat("=", 80)
	stamp := time.Now().Format(separatorTimeFormat)
	return []string{rule, stamp + " - " + action, rule}
}
