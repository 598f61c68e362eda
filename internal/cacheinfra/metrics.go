package cacheinfra

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "querycache"

type metrics struct {
	fetches   *prometheus.CounterVec
	inFlight  prometheus.Gauge
	queries   prometheus.Gauge
	cancelled prometheus.Counter
	removed   prometheus.Counter
}

// newMetrics builds the engine collectors and registers them on reg when it
// is not nil. Unregistered collectors still count, which keeps tests simple.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetches_total",
			Help:      "Fetches run by the engine, by result (success, error, cancelled).",
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "fetches_in_flight",
			Help:      "Fetches currently running.",
		}),
		queries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queries",
			Help:      "Queries tracked by the engine.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cancellations_total",
			Help:      "In-flight fetches cancelled through CancelQueries.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "removals_total",
			Help:      "Queries removed explicitly or by garbage collection.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.fetches, m.inFlight, m.queries, m.cancelled, m.removed)
	}
	return m
}
