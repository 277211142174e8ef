// Package metrics defines the metrics sink contract consumed by the core,
// plus a Prometheus-backed implementation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink receives counters and histograms keyed by method: request count,
// request duration, and in-flight request gauge.
type Sink interface {
	IncRequestCount(method string)
	ObserveRequestDuration(method string, d time.Duration)
	SetInFlight(method string, n int)
}

// NoopSink discards every measurement. Used when an embedder doesn't wire a
// metrics sink but the core still needs a non-nil Sink to call into.
type NoopSink struct{}

// IncRequestCount implements Sink.
func (NoopSink) IncRequestCount(string) {}

// ObserveRequestDuration implements Sink.
func (NoopSink) ObserveRequestDuration(string, time.Duration) {}

// SetInFlight implements Sink.
func (NoopSink) SetInFlight(string, int) {}

// PrometheusSink reports request counts, durations, and in-flight gauges as
// Prometheus collectors registered against the default registry.
type PrometheusSink struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
}

// NewPrometheusSink builds and registers the collectors backing a
// PrometheusSink.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{
		requestCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mediation_server_requests_total",
			Help: "Number of JSON-RPC requests handled, by method.",
		}, []string{"method"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediation_server_request_duration_seconds",
			Help:    "JSON-RPC request handling duration in seconds, by method.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"method"}),
		inFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mediation_server_requests_in_flight",
			Help: "Number of JSON-RPC requests currently in flight, by method.",
		}, []string{"method"}),
	}
}

// IncRequestCount implements Sink.
func (p *PrometheusSink) IncRequestCount(method string) {
	p.requestCount.WithLabelValues(method).Inc()
}

// ObserveRequestDuration implements Sink.
func (p *PrometheusSink) ObserveRequestDuration(method string, d time.Duration) {
	p.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SetInFlight implements Sink.
func (p *PrometheusSink) SetInFlight(method string, n int) {
	p.inFlight.WithLabelValues(method).Set(float64(n))
}
