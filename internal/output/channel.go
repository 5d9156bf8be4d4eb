package output

import (
	"log/slog"
	"sync"
)

// DefaultCap is the default maximum number of buffered output lines.
const DefaultCap = 1000

// Channel is a bounded, thread-safe, append-only buffer of process output
// lines with subscriber fan-out. Once the cap is exceeded the oldest lines
// are dropped in FIFO order. Every appended line is mirrored to the log sink.
//
// The buffer, the subscriber list, and the sink's file handle are guarded by
// independent mutexes so output keeps flowing while a state transition or a
// slow log write is in progress.
type Channel struct {
	mu    sync.Mutex
	lines []string
	cap   int

	subMu sync.Mutex
	subs  []func(line string)

	sink   *Sink
	logger *slog.Logger
}

// NewChannel creates an output channel with the given line cap and sink.
// A cap <= 0 falls back to DefaultCap. The sink may be nil.
func NewChannel(lineCap int, sink *Sink, logger *slog.Logger) *Channel {
	if lineCap <= 0 {
		lineCap = DefaultCap
	}
	return &Channel{
		lines:  make([]string, 0, lineCap),
		cap:    lineCap,
		sink:   sink,
		logger: logger,
	}
}

// Append adds a line to the tail of the buffer, dropping from the head if
// the cap is exceeded, mirrors it to the sink, and notifies subscribers in
// registration order. A subscriber reading the buffer mid-notification sees
// the new line already present.
func (c *Channel) Append(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	if len(c.lines) > c.cap {
		drop := len(c.lines) - c.cap
		c.lines = append(c.lines[:0], c.lines[drop:]...)
	}
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.WriteLine(line)
	}

	c.notify(line)
}

// Snapshot returns a copy of the buffered lines. If max > 0, only the most
// recent max lines are returned.
func (c *Channel) Snapshot(max int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if max > 0 && len(c.lines) > max {
		start = len(c.lines) - max
	}

	result := make([]string, len(c.lines)-start)
	copy(result, c.lines[start:])
	return result
}

// Len returns the current number of buffered lines.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Subscribe registers a callback invoked synchronously for each new line.
// Delivery order equals registration order. There is no unsubscribe.
func (c *Channel) Subscribe(fn func(line string)) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// notify delivers a line to all subscribers. A panicking subscriber must not
// prevent delivery to the rest, so each callback runs behind a recover.
func (c *Channel) notify(line string) {
	c.subMu.Lock()
	subs := make([]func(string), len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()

	for _, fn := range subs {
		c.deliver(fn, line)
	}
}

func (c *Channel) deliver(fn func(string), line string) {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("Output subscriber panicked", "panic", r)
		}
	}()
	fn(line)
}
