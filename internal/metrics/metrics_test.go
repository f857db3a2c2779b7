package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("venue", "create", "written")
	m.ObserveOperation("venue", "create", "written")
	m.ObserveOperation("venue", "create", "conflict")
	m.ObserveRequest("GET", "/profile", "200", 5*time.Millisecond)
	m.ObserveUpload("member", 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("venue", "create", "written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("venue", "create", "conflict")))

	n, err := testutil.GatherAndCount(reg, "http_request_duration_seconds", "profile_picture_bytes")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("a", "b", "c")
		m.ObserveRequest("GET", "/", "200", time.Second)
		m.ObserveUpload("a", 1)
	})
}
