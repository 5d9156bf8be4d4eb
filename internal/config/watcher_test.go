package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("value = 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := func(p string) (string, error) {
		data, err := os.ReadFile(p)
		return string(data), err
	}

	w := NewConfigWatcher(path, loader, testLogger(),
		WithDebounce[string](50*time.Millisecond))

	reloaded := make(chan string, 4)
	w.OnReload(func(content string) {
		reloaded <- content
	})

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case content := <-reloaded:
		if content != "value = 2\n" {
			t.Errorf("handler received stale content: %q", content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := func(p string) (string, error) {
		data, err := os.ReadFile(p)
		return string(data), err
	}

	w := NewConfigWatcher(path, loader, testLogger(),
		WithDebounce[string](20*time.Millisecond))

	calls := make(chan string, 4)
	unsub := w.OnReload(func(content string) {
		calls <- content
	})
	unsub()

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("b\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case content := <-calls:
		t.Errorf("unsubscribed handler called with %q", content)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ok\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loadErr := make(chan error, 1)
	loader := func(string) (string, error) {
		return "", os.ErrPermission
	}

	w := NewConfigWatcher(path, loader, testLogger(),
		WithDebounce[string](20*time.Millisecond),
		WithErrorHandler[string](func(err error) {
			loadErr <- err
		}))

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case err := <-loadErr:
		if err == nil {
			t.Error("expected load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}
