// Package metrics holds the prometheus collectors shared by the services and
// the HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	operations      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadBytes     *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_operations_total",
				Help: "Profile operations by variant, operation and outcome",
			},
			[]string{"variant", "operation", "outcome"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "route", "status"},
		),
		uploadBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profile_picture_bytes",
				Help:    "Size of accepted profile pictures",
				Buckets: prometheus.ExponentialBuckets(16*1024, 2, 9),
			},
			[]string{"variant"},
		),
	}
}

// ObserveOperation counts one service call. A nil receiver is a no-op.
func (m *Metrics) ObserveOperation(variant, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(variant, operation, outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(variant string, size int) {
	if m == nil {
		return
	}
	m.uploadBytes.WithLabelValues(variant).Observe(float64(size))
}
