// Package health provides HTTP readiness probing for the supervised service.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds probe configuration.
type Config struct {
	Host         string
	Port         int
	Interval     time.Duration // delay between probe attempts
	ProbeTimeout time.Duration // per-request timeout
}

// DefaultConfig returns probe defaults matching the supervised service.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		Interval:     1 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor issues readiness probes against the service endpoint. It is
// stateless beyond configuration and safe to call from any goroutine.
type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// New creates a monitor for the configured host and port.
func New(config Config, logger *slog.Logger) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 1 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	return &Monitor{
		url:      fmt.Sprintf("http://%s:%d/", config.Host, config.Port),
		interval: config.Interval,
		client:   &http.Client{Timeout: config.ProbeTimeout},
		logger:   logger,
	}
}

// URL returns the probed endpoint.
func (m *Monitor) URL() string {
	return m.url
}

// Interval returns the configured delay between probe attempts.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Probe performs a single readiness check. Any 2xx response means healthy;
// connection refusal, timeout, or a non-2xx status all mean not yet healthy.
// Network errors are never surfaced to the caller.
func (m *Monitor) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("Health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		m.logger.Debug("Health probe successful", "url", m.url)
		return true
	}
	m.logger.Debug("Health probe returned status", "status", resp.StatusCode)
	return false
}

// Watch probes periodically until ctx is cancelled, invoking onChange
// whenever the result differs from the previous attempt. Used for the
// liveness badge after the service is up.
func (m *Monitor) Watch(ctx context.Context, onChange func(healthy bool)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	known := false
	var last bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy := m.Probe(ctx)
			if !known || healthy != last {
				known = true
				last = healthy
				if onChange != nil {
					onChange(healthy)
				}
			}
		}
	}
}
