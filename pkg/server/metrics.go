package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the codec service.
type Metrics struct {
	// Codec metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	charactersTotal   *prometheus.CounterVec

	// Policy metrics
	policyDecisions *prometheus.CounterVec

	// Key store metrics
	keysStored prometheus.Gauge

	// Rate limiting metrics
	rateLimited *prometheus.CounterVec

	// Configuration reload metrics
	configReloads *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_operations_total",
				Help: "Total number of codec operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cipher_operation_duration_seconds",
				Help:    "Codec operation latency in seconds, including policy evaluation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		charactersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_characters_total",
				Help: "Total number of characters transformed",
			},
			[]string{"operation"},
		),

		policyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_policy_decisions_total",
				Help: "Total number of policy decisions by action",
			},
			[]string{"action"},
		),

		keysStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cipher_keys_stored",
				Help: "Number of keys currently held by the key store",
			},
		),

		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_config_reloads_total",
				Help: "Total number of configuration reload attempts by status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipher_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cipher_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.charactersTotal,
		m.policyDecisions,
		m.keysStored,
		m.rateLimited,
		m.configReloads,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordOperation records a finished codec operation.
func (m *Metrics) RecordOperation(operation, outcome string, characters int, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if characters > 0 {
		m.charactersTotal.WithLabelValues(operation).Add(float64(characters))
	}
}

// RecordPolicyDecision records the action chosen by the policy filter.
func (m *Metrics) RecordPolicyDecision(action string) {
	m.policyDecisions.WithLabelValues(action).Inc()
}

// SetKeysStored updates the key store size gauge.
func (m *Metrics) SetKeysStored(n int) {
	m.keysStored.Set(float64(n))
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(endpoint string) {
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func (m *Metrics) RecordConfigReload(status string) {
	m.configReloads.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency under the given endpoint name.
func (m *Metrics) Middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}
