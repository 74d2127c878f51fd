package transfer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the engine's transfer counters. Pass nil to the engine
// to disable collection.
type Metrics struct {
	ChunksTotal       prometheus.Counter
	ChunkRetriesTotal prometheus.Counter
	BytesWrittenTotal prometheus.Counter
	ActiveSessions    prometheus.Gauge
}

// NewMetrics builds and registers the transfer collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytfetch",
			Subsystem: "transfer",
			Name:      "chunks_total",
			Help:      "Number of chunks fully written.",
		}),
		ChunkRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytfetch",
			Subsystem: "transfer",
			Name:      "chunk_retries_total",
			Help:      "Number of chunk attempts that were retried.",
		}),
		BytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytfetch",
			Subsystem: "transfer",
			Name:      "bytes_written_total",
			Help:      "Total payload bytes written across sessions.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytfetch",
			Subsystem: "transfer",
			Name:      "active_sessions",
			Help:      "Sessions currently in a non-terminal state.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ChunksTotal, m.ChunkRetriesTotal, m.BytesWrittenTotal, m.ActiveSessions)
	}
	return m
}

func (m *Metrics) chunkWritten(n int64) {
	if m == nil {
		return
	}
	m.ChunksTotal.Inc()
	m.BytesWrittenTotal.Add(float64(n))
}

func (m *Metrics) chunkRetried() {
	if m == nil {
		return
	}
	m.ChunkRetriesTotal.Inc()
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
