package toolcall

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const maxLatencySamples = 100

// Metrics tracks tool invocation outcomes and latency.
type Metrics struct {
	enabled bool

	calls    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu      sync.Mutex
	samples map[string][]float64
}

// NewMetrics registers the tool-call collectors with reg.
func NewMetrics(reg prometheus.Registerer, enabled bool) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		enabled: enabled,
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Tool invocations, by tool and terminal outcome.",
		}, []string{"tool", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_call_retries_total",
			Help: "Tool invocation retries, by tool.",
		}, []string{"tool"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_call_duration_seconds",
			Help:    "Latency of successful tool invocations, by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		samples: make(map[string][]float64),
	}
}

// Succeeded records a successful attempt and its latency.
func (m *Metrics) Succeeded(tool string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.calls.WithLabelValues(tool, "success").Inc()
	m.duration.WithLabelValues(tool).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.samples[tool], d.Seconds())
	if len(ring) > maxLatencySamples {
		ring = ring[len(ring)-maxLatencySamples:]
	}
	m.samples[tool] = ring
}

// Failed records a failed attempt.
func (m *Metrics) Failed(tool string) {
	if !m.enabled {
		return
	}
	m.calls.WithLabelValues(tool, "failure").Inc()
}

// Retried records a scheduled retry.
func (m *Metrics) Retried(tool string) {
	if !m.enabled {
		return
	}
	m.retries.WithLabelValues(tool).Inc()
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
