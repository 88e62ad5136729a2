package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FrameReceived()
	m.TaskEnqueued("journal/Scan")
	m.TaskDropped("Commodity", "queue_full")
	m.SetQueueDepth(7)
	m.TaskProcessed("journal/Scan", "Success", 20*time.Millisecond)
	m.AuditFailed("postgres")
	m.StoreRetried()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksDropped.WithLabelValues("Commodity", "queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksProcessed.WithLabelValues("journal/Scan", "Success")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.FrameReceived()
		m.TaskEnqueued("x")
		m.TaskDropped("x", "y")
		m.SetQueueDepth(1)
		m.TaskProcessed("x", "Error", time.Second)
		m.AuditFailed("redis")
		m.StoreRetried()
	})
}
