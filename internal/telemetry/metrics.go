// Package telemetry exposes Prometheus metrics and the OpenTelemetry
// tracer used across FraudGuard.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "fraudguard"

// Training outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDataError = "data_error"
	OutcomeFailed    = "failed"
)

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Metrics holds the application collectors on a private registry.
// All methods are safe on a nil receiver so components can run without
// metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	decisions        *prometheus.CounterVec
	predictions      *prometheus.CounterVec
	sessions         prometheus.Gauge
}

// New registers the FraudGuard collectors plus the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs by domain, model kind and outcome.",
		}, []string{"domain", "model_kind", "outcome"}),
		trainingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of training runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"domain", "model_kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_decisions_total",
			Help:      "Rule engine decisions by domain and action.",
		}, []string{"domain", "action"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Model predictions by domain.",
		}, []string{"domain"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.trainingRuns, m.trainingDuration,
		m.decisions, m.predictions, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTraining records a finished training run.
func (m *Metrics) ObserveTraining(domain, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(domain, kind, outcome).Inc()
	m.trainingDuration.WithLabelValues(domain, kind).Observe(d.Seconds())
}

// RecordDecision counts a rule engine result.
func (m *Metrics) RecordDecision(domain, action string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(domain, action).Inc()
}

// RecordPrediction counts a model inference.
func (m *Metrics) RecordPrediction(domain string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(domain).Inc()
}

// SetSessions reports the session store size.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
