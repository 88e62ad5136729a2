// Package metrics holds the Prometheus instruments for the ingestion pipeline.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eddn_ingest"

type Metrics struct {
	FramesReceived prometheus.Counter
	TasksEnqueued  *prometheus.CounterVec
	TasksDropped   *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	TasksProcessed *prometheus.CounterVec
	HandleDuration *prometheus.HistogramVec
	AuditFailures  *prometheus.CounterVec
	StoreRetries   prometheus.Counter
}

// New creates the pipeline metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_received_total",
			Help:      "Total number of frames received from the feed",
		}),
		TasksEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of tasks accepted by the ingest queue",
		}, []string{"kind"}),
		TasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_dropped_total",
			Help:      "Total number of tasks dropped before reaching a worker",
		}, []string{"kind", "reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of tasks waiting in the ingest queue",
		}),
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_processed_total",
			Help:      "Total number of tasks processed by outcome",
		}, []string{"kind", "status"}),
		HandleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "handle_duration_seconds",
			Help:      "Time spent validating and handling one task",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		AuditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Total number of audit records a sink failed to persist",
		}, []string{"sink"}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "connection_retries_total",
			Help:      "Total number of store connection attempts that were retried",
		}),
	}

	reg.MustRegister(
		m.FramesReceived,
		m.TasksEnqueued,
		m.TasksDropped,
		m.QueueDepth,
		m.TasksProcessed,
		m.HandleDuration,
		m.AuditFailures,
		m.StoreRetries,
	)

	return m
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

func (m *Metrics) TaskEnqueued(kind string) {
	if m == nil {
		return
	}
	m.TasksEnqueued.WithLabelValues(kind).Inc()
}

func (m *Metrics) TaskDropped(kind, reason string) {
	if m == nil {
		return
	}
	m.TasksDropped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) TaskProcessed(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TasksProcessed.WithLabelValues(kind, status).Inc()
	m.HandleDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) AuditFailed(sink string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) StoreRetried() {
	if m == nil {
		return
	}
	m.StoreRetries.Inc()
}
