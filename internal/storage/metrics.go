package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the storage handler's cache behaviour to Prometheus.
// All methods are safe on a nil receiver so handlers can run unmetered.
type Metrics struct {
	requests     *prometheus.CounterVec
	segments     *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	partitions   *prometheus.GaugeVec
	sweepRemoved *prometheus.CounterVec
}

// NewMetrics registers the storage metric family with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wpl",
			Subsystem: "storage",
			Name:      "requests_total",
			Help:      "Data requests handled, by model and outcome.",
		}, []string{"model", "outcome"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wpl",
			Subsystem: "storage",
			Name:      "coverage_segments_total",
			Help:      "Coverage classifications produced by evaluation, by model and status.",
		}, []string{"model", "status"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wpl",
			Subsystem: "storage",
			Name:      "live_fetches_total",
			Help:      "Live fetches issued to upstream models, by model and result.",
		}, []string{"model", "result"}),
		partitions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wpl",
			Subsystem: "storage",
			Name:      "partitions",
			Help:      "Live partitions currently held per model.",
		}, []string{"model"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wpl",
			Subsystem: "storage",
			Name:      "sweep_removed_total",
			Help:      "Partitions removed by retention sweeps, by model.",
		}, []string{"model"}),
	}
	reg.MustRegister(m.requests, m.segments, m.fetches, m.partitions, m.sweepRemoved)
	return m
}

func (m *Metrics) observeRequest(mod, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mod, outcome).Inc()
}

func (m *Metrics) observeSegments(mod string, report CoverageReport) {
	if m == nil {
		return
	}
	for _, seg := range report.Segments {
		m.segments.WithLabelValues(mod, string(seg.Status)).Inc()
	}
}

func (m *Metrics) observeFetch(mod, result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(mod, result).Inc()
}

func (m *Metrics) setPartitions(mod string, n int) {
	if m == nil {
		return
	}
	m.partitions.WithLabelValues(mod).Set(float64(n))
}

func (m *Metrics) observeSweep(mod string, removed int) {
	if m == nil {
		return
	}
	m.sweepRemoved.WithLabelValues(mod).Add(float64(removed))
}
