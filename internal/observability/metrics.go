package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for hashing.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec
	BytesTotal         *prometheus.CounterVec
	Duration           *prometheus.HistogramVec
	ChunksTotal        prometheus.Counter
	VerificationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filehash_operations_total",
				Help: "Hash computations by algorithm and result",
			},
			[]string{"algorithm", "result"},
		),

		BytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filehash_bytes_total",
				Help: "Bytes fed to digest accumulators",
			},
			[]string{"algorithm"},
		),

		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filehash_duration_seconds",
				Help:    "Hash computation latency",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"algorithm"},
		),

		ChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filehash_chunks_total",
				Help: "Chunks read from hashed inputs",
			},
		),

		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filehash_verifications_total",
				Help: "Digest verifications by result",
			},
			[]string{"result"},
		),

		registry: reg,
	}
}

// RecordHash records one finished hash computation.
func (m *Metrics) RecordHash(algorithm string, success bool, bytes int64, chunks int, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.OperationsTotal.WithLabelValues(algorithm, result).Inc()
	m.BytesTotal.WithLabelValues(algorithm).Add(float64(bytes))
	m.ChunksTotal.Add(float64(chunks))
	m.Duration.WithLabelValues(algorithm).Observe(durationSeconds)
}

// RecordVerification increments verification counters.
func (m *Metrics) RecordVerification(match bool) {
	result := "match"
	if !match {
		result = "mismatch"
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the metrics in the text exposition format, suitable for
// the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
