package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetLoggingState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLoggingState()

	// Global info level, supervisor at debug, api at warn
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"supervisor": "debug",
			"api":        "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"supervisor", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetLoggingState()

	// Before Initialize the module logger defaults to info
	loggerBefore := GetLogger("supervisor")
	handlerBefore := loggerBefore.Handler()

	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"supervisor": "debug",
		},
	})

	loggerAfter := GetLogger("supervisor")
	if loggerBefore != loggerAfter {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}

	// The pre-existing handler's LevelVar must reflect the new level
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates LevelVar")
	}
}

func TestBufferReceivesEntries(t *testing.T) {
	resetLoggingState()
	Initialize(Config{Level: "info", Format: "text"})

	logger := GetLogger("supervisor")
	logger.Info("service started", "pid", 42)

	buffer := GetBuffer()
	if buffer == nil {
		t.Fatal("ring buffer missing after Initialize")
	}

	entries := buffer.ReadAll()
	if len(entries) == 0 {
		t.Fatal("expected at least one buffered entry")
	}
	last := entries[len(entries)-1]
	if last.Message != "service started" {
		t.Errorf("unexpected message: %q", last.Message)
	}
	if last.Module != "supervisor" {
		t.Errorf("unexpected module: %q", last.Module)
	}
	if last.Level != "info" {
		t.Errorf("unexpected level: %q", last.Level)
	}
	if last.Attributes["pid"] != int64(42) {
		t.Errorf("unexpected attributes: %v", last.Attributes)
	}
}

func TestLogCallbackInvoked(t *testing.T) {
	resetLoggingState()
	Initialize(Config{Level: "info", Format: "text"})

	received := make(chan LogEntry, 1)
	SetLogCallback(func(entry LogEntry) {
		select {
		case received <- entry:
		default:
		}
	})

	GetLogger("api").Warn("something odd")

	select {
	case entry := <-received:
		if entry.Message != "something odd" || entry.Level != "warn" {
			t.Errorf("unexpected entry: %+v", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for log callback")
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	if rb.Count() != 3 {
		t.Fatalf("expected count 3, got %d", rb.Count())
	}

	entries := rb.ReadAll()
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Message
	}
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	multi := NewMultiHandler(debugHandler, infoHandler)
	logger := slog.New(multi).With("module", "test")

	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			} else if *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
