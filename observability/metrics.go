package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	transitions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// EngineMetrics returns the lazily-initialised metrics registry used to record
// escrow lifecycle activity.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "escrowd",
				Subsystem: "engine",
				Name:      "transitions_total",
				Help:      "Total lifecycle operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "escrowd",
				Subsystem: "engine",
				Name:      "transition_duration_seconds",
				Help:      "Latency distribution for lifecycle operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			engineRegistry.transitions,
			engineRegistry.latency,
		)
	})
	return engineRegistry
}

// ObserveTransition records one lifecycle operation attempt.
func (m *engineMetrics) ObserveTransition(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
