// Package metrics exposes Prometheus metrics for supervisor activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/webuinode/internal/events"
)

var knownStates = []string{"stopped", "starting", "running", "stopping", "error"}

// Collector subscribes to the event bus and maintains supervisor metrics
// on a private registry.
type Collector struct {
	registry *prometheus.Registry

	stateGauge    *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	outputLines   prometheus.Counter
	healthChanges *prometheus.CounterVec

	unsubs []func()
}

// New creates a collector and wires it to the bus.
func New(bus *events.Bus) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "webuinode_service_state",
			Help: "Current supervisor state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webuinode_state_transitions_total",
			Help: "Supervisor state transitions by from/to state.",
		}, []string{"from", "to"}),
		outputLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webuinode_output_lines_total",
			Help: "Output lines captured from the service process.",
		}),
		healthChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webuinode_health_changes_total",
			Help: "Health probe result changes by outcome.",
		}, []string{"healthy"}),
	}

	c.registry.MustRegister(c.stateGauge, c.transitions, c.outputLines, c.healthChanges)

	// Initialize the state gauge so every state series exists from the start.
	for _, st := range knownStates {
		c.stateGauge.WithLabelValues(st).Set(0)
	}
	c.stateGauge.WithLabelValues("stopped").Set(1)

	c.unsubs = append(c.unsubs,
		bus.Subscribe(func(e events.ProcessStateChangedEvent) {
			c.transitions.WithLabelValues(e.OldState, e.NewState).Inc()
			c.stateGauge.WithLabelValues(e.OldState).Set(0)
			c.stateGauge.WithLabelValues(e.NewState).Set(1)
		}),
		bus.Subscribe(func(e events.OutputLineEvent) {
			c.outputLines.Inc()
		}),
		bus.Subscribe(func(e events.HealthChangedEvent) {
			if e.Healthy {
				c.healthChanges.WithLabelValues("true").Inc()
			} else {
				c.healthChanges.WithLabelValues("false").Inc()
			}
		}),
	)

	return c
}

// Handler returns an HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Close detaches the collector from the bus.
func (c *Collector) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}
