package bridge

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxLatencySamples bounds the per-tool sample history kept for the
// diagnostics API.
const maxLatencySamples = 100

// Metrics tracks emission outcomes. Prometheus collectors feed /metrics;
// the bounded sample rings feed the diagnostics endpoint.
type Metrics struct {
	enabled bool

	actionsEmitted *prometheus.CounterVec
	actionsDropped *prometheus.CounterVec
	resultsDropped *prometheus.CounterVec
	emitLatency    *prometheus.HistogramVec

	mu      sync.Mutex
	samples map[string][]float64
}

// NewMetrics registers the bridge collectors with reg. When enabled is
// false the returned Metrics is a no-op recorder (collectors still exist
// so dashboards keep their series).
func NewMetrics(reg prometheus.Registerer, enabled bool) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		enabled: enabled,
		actionsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_actions_emitted_total",
			Help: "UI actions emitted, by action kind.",
		}, []string{"kind"}),
		actionsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_actions_dropped_total",
			Help: "UI actions dropped before emission, by reason.",
		}, []string{"reason"}),
		resultsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_tool_results_dropped_total",
			Help: "Raw tool results dropped before emission, by reason.",
		}, []string{"reason"}),
		emitLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_emit_duration_seconds",
			Help:    "Latency of tool-result emission, by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		samples: make(map[string][]float64),
	}
}

// ActionEmitted records one delivered action.
func (m *Metrics) ActionEmitted(kind string) {
	if !m.enabled {
		return
	}
	m.actionsEmitted.WithLabelValues(kind).Inc()
}

// ActionDropped records one dropped action.
func (m *Metrics) ActionDropped(reason string) {
	if !m.enabled {
		return
	}
	m.actionsDropped.WithLabelValues(reason).Inc()
}

// ResultDropped records one dropped raw tool result.
func (m *Metrics) ResultDropped(reason string) {
	if !m.enabled {
		return
	}
	m.resultsDropped.WithLabelValues(reason).Inc()
}

// EmitLatency records how long a tool-result emission took.
func (m *Metrics) EmitLatency(tool string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.emitLatency.WithLabelValues(tool).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.samples[tool], d.Seconds())
	if len(ring) > maxLatencySamples {
		ring = ring[len(ring)-maxLatencySamples:]
	}
	m.samples[tool] = ring
}

// LatencySamples returns a copy of the recent latency samples per tool.
func (m *Metrics) LatencySamples() map[string][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]float64, len(m.samples))
	for tool, ring := range m.samples {
		out[tool] = append([]float64(nil), ring...)
	}
	return out
}
