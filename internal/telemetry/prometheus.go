package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subscribe/internal/types"
)

const promNamespace = "subscribe"

// PrometheusCollector keeps metrics in its own registry and exposes them
// through Handler. Each instance owns a fresh registry, so tests can build
// as many as they like without duplicate registration panics.
type PrometheusCollector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	signups  *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the service metrics plus the Go runtime
// and process collectors.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by endpoint, method and status.",
		}, []string{"endpoint", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "signup_outcomes_total",
			Help:      "Signup attempts by terminal outcome.",
		}, []string{"outcome"}),
	}
}

func (p *PrometheusCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.requests.WithLabelValues(endpoint, method, status).Inc()
	p.latency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordSignupOutcome(_ context.Context, outcome types.SignupOutcome) {
	p.signups.WithLabelValues(string(outcome)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}
