package console

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the default render throttle cadence.
const DefaultInterval = 500 * time.Millisecond

// SnapshotFunc returns the current output lines, most recent last.
type SnapshotFunc func() []string

// Sink receives render instructions from a Renderer.
//
// FullRender rebuilds the entire view from the snapshot; AppendLines adds
// only newly observed lines, leaving the already-rendered prefix and the
// viewer's scroll position untouched.
type Sink interface {
	FullRender(lines []string, autoScroll bool) error
	AppendLines(lines []string, autoScroll bool) error
}

// Renderer consumes an output snapshot source and produces either a full
// re-render or a minimal append per pass. Render requests are throttled to
// a fixed cadence: output notifications only mark the view dirty, and a
// periodic worker performs at most one render pass per interval.
//
// The incremental decision is based on line counts alone. A count lower
// than the last rendered count means the source buffer was trimmed, which
// forces a full render; content is never diffed.
type Renderer struct {
	source   SnapshotFunc
	sink     Sink
	interval time.Duration
	logger   *slog.Logger

	dirty      atomic.Bool
	autoScroll atomic.Bool

	mu          sync.Mutex
	active      bool
	initialized bool
	lastCount   int
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewRenderer creates a renderer over the given snapshot source and sink.
// An interval <= 0 falls back to DefaultInterval.
func NewRenderer(source SnapshotFunc, sink Sink, interval time.Duration, logger *slog.Logger) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Renderer{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
	r.autoScroll.Store(true)
	return r
}

// SetAutoScroll toggles stick-to-bottom behavior. Independent of the
// full-vs-incremental render decision.
func (r *Renderer) SetAutoScroll(enabled bool) {
	r.autoScroll.Store(enabled)
}

// AutoScroll reports whether stick-to-bottom is enabled.
func (r *Renderer) AutoScroll() bool {
	return r.autoScroll.Load()
}

// MarkDirty requests a render. Safe to call at any rate; actual renders
// are batched by the periodic worker.
func (r *Renderer) MarkDirty() {
	r.dirty.Store(true)
}

// Activate performs one immediate render pass and starts the periodic
// worker. No-op if already active.
func (r *Renderer) Activate() {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.initialized = false
	r.lastCount = 0

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.renderPassLocked()
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Debug("Console renderer activated")
}

// Deactivate stops the periodic worker and resets render tracking so the
// next activation starts with a full render.
func (r *Renderer) Deactivate() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	r.initialized = false
	r.lastCount = 0
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Debug("Console renderer deactivated")
}

// run is the throttle worker: one render pass per interval, and only when
// something marked the view dirty.
func (r *Renderer) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.dirty.Swap(false) {
				r.mu.Lock()
				r.renderPassLocked()
				r.mu.Unlock()
			}
		}
	}
}

// renderPassLocked performs one render pass. Caller holds r.mu.
func (r *Renderer) renderPassLocked() {
	lines := r.source()
	n := len(lines)
	autoScroll := r.autoScroll.Load()

	// Full render on first pass or when the count decreased (buffer trim).
	if !r.initialized || n < r.lastCount {
		if err := r.sink.FullRender(lines, autoScroll); err != nil {
			r.logger.Error("Full render failed", "error", err)
			return
		}
		r.initialized = true
		r.lastCount = n
		return
	}

	if n == r.lastCount {
		return
	}

	newLines := lines[r.lastCount:]
	if err := r.sink.AppendLines(newLines, autoScroll); err != nil {
		// Fall back to a full render rather than leaving the view out of sync.
		r.logger.Error("Incremental append failed, falling back to full render", "error", err)
		if err := r.sink.FullRender(lines, autoScroll); err != nil {
			r.logger.Error("Full render failed", "error", err)
			return
		}
	}
	r.lastCount = n
}
