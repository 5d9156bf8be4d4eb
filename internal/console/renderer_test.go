package console

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records render calls and can be told to fail appends.
type fakeSink struct {
	mu         sync.Mutex
	calls      []string
	fullLines  [][]string
	appendErr  error
	lastAppend []string
}

func (s *fakeSink) FullRender(lines []string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "full")
	cp := make([]string, len(lines))
	copy(cp, lines)
	s.fullLines = append(s.fullLines, cp)
	return nil
}

func (s *fakeSink) AppendLines(lines []string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		s.calls = append(s.calls, "append-failed")
		return s.appendErr
	}
	s.calls = append(s.calls, "append")
	cp := make([]string, len(lines))
	copy(cp, lines)
	s.lastAppend = cp
	return nil
}

func (s *fakeSink) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.calls))
	copy(cp, s.calls)
	return cp
}

// lineSource is a mutable snapshot source for tests.
type lineSource struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSource) set(lines []string) {
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
}

func (s *lineSource) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.lines))
	copy(cp, s.lines)
	return cp
}

func newTestRenderer(src *lineSource, sink Sink) *Renderer {
	return NewRenderer(src.snapshot, sink, 20*time.Millisecond, testLogger())
}

// waitForCalls polls until the sink call log reaches want entries.
func waitForCalls(t *testing.T, sink *fakeSink, want int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if calls := sink.callLog(); len(calls) >= want {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d sink calls, have %v", want, sink.callLog())
	return nil
}

func TestActivateRendersFull(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a", "b"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	defer r.Deactivate()

	calls := waitForCalls(t, sink, 1)
	if calls[0] != "full" {
		t.Errorf("expected initial full render, got %v", calls)
	}
}

func TestMonotonicGrowthAppendsOnly(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	defer r.Deactivate()
	waitForCalls(t, sink, 1)

	src.set([]string{"a", "b", "c"})
	r.MarkDirty()

	calls := waitForCalls(t, sink, 2)
	if calls[1] != "append" {
		t.Fatalf("expected append after growth, got %v", calls)
	}

	sink.mu.Lock()
	appended := sink.lastAppend
	sink.mu.Unlock()
	if len(appended) != 2 || appended[0] != "b" || appended[1] != "c" {
		t.Errorf("expected appended tail [b c], got %v", appended)
	}
}

func TestShrinkForcesFullRender(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a", "b", "c"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	defer r.Deactivate()
	waitForCalls(t, sink, 1)

	// Simulate a buffer trim: fewer lines than last render
	src.set([]string{"b", "c"})
	r.MarkDirty()

	calls := waitForCalls(t, sink, 2)
	if calls[1] != "full" {
		t.Errorf("expected full render after shrink, got %v", calls)
	}
}

func TestEqualCountIsNoOp(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a", "b"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	defer r.Deactivate()
	waitForCalls(t, sink, 1)

	// Dirty but nothing changed: no render call should follow
	r.MarkDirty()
	time.Sleep(100 * time.Millisecond)

	if calls := sink.callLog(); len(calls) != 1 {
		t.Errorf("expected no render on equal count, got %v", calls)
	}
}

func TestAppendFailureFallsBackToFull(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	defer r.Deactivate()
	waitForCalls(t, sink, 1)

	sink.mu.Lock()
	sink.appendErr = errors.New("write failed")
	sink.mu.Unlock()

	src.set([]string{"a", "b"})
	r.MarkDirty()

	calls := waitForCalls(t, sink, 3)
	if calls[1] != "append-failed" || calls[2] != "full" {
		t.Errorf("expected append failure then full fallback, got %v", calls)
	}

	// Fallback must render the complete snapshot
	sink.mu.Lock()
	last := sink.fullLines[len(sink.fullLines)-1]
	sink.mu.Unlock()
	if len(last) != 2 {
		t.Errorf("expected fallback full render of 2 lines, got %v", last)
	}
}

func TestThrottleCoalescesBursts(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a"})
	sink := &fakeSink{}
	r := NewRenderer(src.snapshot, sink, 100*time.Millisecond, testLogger())

	r.Activate()
	defer r.Deactivate()
	waitForCalls(t, sink, 1)

	// Burst of updates within one interval
	for i := 0; i < 50; i++ {
		src.set(append(src.snapshot(), "x"))
		r.MarkDirty()
		time.Sleep(time.Millisecond)
	}

	calls := waitForCalls(t, sink, 2)
	// The burst spans well under two intervals; at most two passes may fire
	if len(calls) > 3 {
		t.Errorf("throttle failed to coalesce burst: %d calls %v", len(calls), calls)
	}
}

func TestDeactivateResetsTracking(t *testing.T) {
	src := &lineSource{}
	src.set([]string{"a", "b"})
	sink := &fakeSink{}
	r := newTestRenderer(src, sink)

	r.Activate()
	waitForCalls(t, sink, 1)
	r.Deactivate()

	// Reactivation must start from a full render even with unchanged data
	r.Activate()
	defer r.Deactivate()

	calls := waitForCalls(t, sink, 2)
	if calls[1] != "full" {
		t.Errorf("expected full render after reactivation, got %v", calls)
	}
}

func TestWriterSinkFullClearsScreen(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	if err := s.FullRender([]string{"one", "two"}, true); err != nil {
		t.Fatalf("FullRender failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\033[2J\033[H") {
		t.Error("expected ANSI clear sequence before full render")
	}
	if !strings.Contains(out, "one\ntwo\n") {
		t.Errorf("expected rendered lines, got %q", out)
	}

	buf.Reset()
	if err := s.AppendLines([]string{"three"}, true); err != nil {
		t.Fatalf("AppendLines failed: %v", err)
	}
	if got := buf.String(); got != "three\n" {
		t.Errorf("expected plain append, got %q", got)
	}
}
