package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppendAndSnapshot(t *testing.T) {
	c := NewChannel(10, nil, testLogger())

	c.Append("first")
	c.Append("second")

	lines := c.Snapshot(0)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "first" || lines[1] != "second" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestSnapshotMax(t *testing.T) {
	c := NewChannel(10, nil, testLogger())
	for i := 0; i < 5; i++ {
		c.Append(fmt.Sprintf("line_%d", i))
	}

	lines := c.Snapshot(2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "line_3" || lines[1] != "line_4" {
		t.Errorf("expected last two lines, got %v", lines)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewChannel(10, nil, testLogger())
	c.Append("original")

	lines := c.Snapshot(0)
	lines[0] = "mutated"

	if got := c.Snapshot(0)[0]; got != "original" {
		t.Errorf("snapshot mutation leaked into buffer: %q", got)
	}
}

func TestCapacityTrimsOldestFirst(t *testing.T) {
	c := NewChannel(1000, nil, testLogger())
	for i := 0; i < 1500; i++ {
		c.Append(fmt.Sprintf("line_%d", i))
	}

	lines := c.Snapshot(0)
	if len(lines) != 1000 {
		t.Fatalf("expected buffer capped at 1000, got %d", len(lines))
	}
	if lines[0] != "line_500" {
		t.Errorf("expected oldest retained line to be line_500, got %q", lines[0])
	}
	if lines[len(lines)-1] != "line_1499" {
		t.Errorf("expected newest line to be line_1499, got %q", lines[len(lines)-1])
	}
}

func TestSubscriberOrderAndTiming(t *testing.T) {
	c := NewChannel(10, nil, testLogger())

	var order []string
	c.Subscribe(func(line string) {
		// The buffer must already contain the line during notification
		if got := c.Len(); got == 0 {
			t.Error("buffer empty during notification")
		}
		order = append(order, "a:"+line)
	})
	c.Subscribe(func(line string) {
		order = append(order, "b:"+line)
	})

	c.Append("x")

	if len(order) != 2 || order[0] != "a:x" || order[1] != "b:x" {
		t.Errorf("unexpected delivery order: %v", order)
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	c := NewChannel(10, nil, testLogger())

	var delivered []string
	c.Subscribe(func(string) {
		panic("boom")
	})
	c.Subscribe(func(line string) {
		delivered = append(delivered, line)
	})

	c.Append("x")
	c.Append("y")

	if len(delivered) != 2 {
		t.Errorf("expected 2 deliveries to surviving subscriber, got %d", len(delivered))
	}
}

func TestSinkMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	sink := NewSink(path, testLogger())
	if err := sink.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c := NewChannel(10, sink, testLogger())
	c.Append("mirrored line")
	sink.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if string(data) != "mirrored line\n" {
		t.Errorf("unexpected log contents: %q", string(data))
	}
}

func TestSinkAppendsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	for i := 0; i < 2; i++ {
		sink := NewSink(path, testLogger())
		if err := sink.Open(); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		sink.WriteLine(fmt.Sprintf("session_%d", i))
		sink.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if string(data) != "session_0\nsession_1\n" {
		t.Errorf("log file was not appended across sessions: %q", string(data))
	}
}

func TestWriteWhileClosedIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	sink := NewSink(path, testLogger())

	// Never opened: writes must be silent no-ops
	sink.WriteLine("dropped")
	sink.WriteSeparator("STARTING")
	sink.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file to be created, stat err = %v", err)
	}
}

func TestSeparatorLines(t *testing.T) {
	lines := SeparatorLines("STARTING")
	if len(lines) != 3 {
		t.Fatalf("expected 3 separator lines, got %d", len(lines))
	}

	rule := strings.Repeat("=", 80)
	if lines[0] != rule || lines[2] != rule {
		t.Errorf("expected 80-char rules, got %q / %q", lines[0], lines[2])
	}
	if !strings.HasSuffix(lines[1], " - STARTING") {
		t.Errorf("expected action suffix, got %q", lines[1])
	}
	// Timestamp prefix: "2006-01-02 15:04:05"
	stamp := strings.TrimSuffix(lines[1], " - STARTING")
	if len(stamp) != 19 {
		t.Errorf("unexpected timestamp format: %q", stamp)
	}
}
