package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// monitorFor builds a Monitor probing the given test server.
func monitorFor(t *testing.T, ts *httptest.Server, interval time.Duration) *Monitor {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}
	return New(Config{
		Host:         u.Hostname(),
		Port:         port,
		Interval:     interval,
		ProbeTimeout: 500 * time.Millisecond,
	}, testLogger())
}

func TestProbeHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m := monitorFor(t, ts, time.Second)
	if !m.Probe(context.Background()) {
		t.Error("expected healthy probe against 200 response")
	}
}

func TestProbeNon2xxIsUnhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	m := monitorFor(t, ts, time.Second)
	if m.Probe(context.Background()) {
		t.Error("expected unhealthy probe against 503 response")
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	m := monitorFor(t, ts, time.Second)
	ts.Close()

	if m.Probe(context.Background()) {
		t.Error("expected unhealthy probe against closed server")
	}
}

func TestWatchReportsOnChangeOnly(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	m := monitorFor(t, ts, 20*time.Millisecond)

	changes := make(chan bool, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, func(h bool) {
		changes <- h
	})

	// First observation is always reported
	select {
	case h := <-changes:
		if !h {
			t.Fatalf("expected first observation healthy, got %v", h)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first health observation")
	}

	healthy.Store(false)
	select {
	case h := <-changes:
		if h {
			t.Fatalf("expected transition to unhealthy, got %v", h)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for health transition")
	}

	// No further transitions: nothing else should be reported
	select {
	case h := <-changes:
		t.Fatalf("unexpected change report: %v", h)
	case <-time.After(100 * time.Millisecond):
	}
}
