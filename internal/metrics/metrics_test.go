package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestSink() *PrometheusSink {
	return &PrometheusSink{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_requests_total",
		}, []string{"method"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "test_request_duration_seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_requests_in_flight",
		}, []string{"method"}),
	}
}

func TestIncRequestCountIncrementsByMethod(t *testing.T) {
	s := newTestSink()
	s.IncRequestCount("issue.list")
	s.IncRequestCount("issue.list")
	s.IncRequestCount("issue.get")

	assert.Equal(t, float64(2), testutil.ToFloat64(s.requestCount.WithLabelValues("issue.list")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.requestCount.WithLabelValues("issue.get")))
}

func TestSetInFlightReportsLatestValue(t *testing.T) {
	s := newTestSink()
	s.SetInFlight("search", 3)
	s.SetInFlight("search", 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(s.inFlight.WithLabelValues("search")))
}

func TestObserveRequestDurationDoesNotPanic(t *testing.T) {
	s := newTestSink()
	assert.NotPanics(t, func() {
		s.ObserveRequestDuration("issue.query", 15*time.Millisecond)
	})
}

func TestNoopSinkDoesNothing(t *testing.T) {
	var s Sink = NoopSink{}
	assert.NotPanics(t, func() {
		s.IncRequestCount("x")
		s.ObserveRequestDuration("x", time.Second)
		s.SetInFlight("x", 1)
	})
}
