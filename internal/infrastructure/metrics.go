package infrastructure

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "queue_monitor"
)

type (
	Metrics interface {
		RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
		RecordRefresh(endpoint string, success bool, queueCount int, duration time.Duration)
		RecordReconnectAttempt(endpoint string)
		RecordClassification(format string)
		RecordOperation(operation string, success bool, duration time.Duration)
		Handler() http.Handler
	}

	PrometheusMetrics struct {
		registry *prometheus.Registry

		httpRequestTotal    *prometheus.CounterVec
		httpRequestDuration *prometheus.HistogramVec
		refreshTotal        *prometheus.CounterVec
		refreshDuration     *prometheus.HistogramVec
		refreshQueueCount   *prometheus.GaugeVec
		reconnectTotal      *prometheus.CounterVec
		classificationTotal *prometheus.CounterVec
		operationTotal      *prometheus.CounterVec
		operationDuration   *prometheus.HistogramVec
	}
)

func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,
		httpRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_total",
			Help:      "Total number of connection refresh cycles by outcome.",
		}, []string{"endpoint", "outcome"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Connection refresh latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		refreshQueueCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queues_visible",
			Help:      "Number of queues visible on the endpoint after the last successful refresh.",
		}, []string{"endpoint"}),
		reconnectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of automatic reconnect attempts.",
		}, []string{"endpoint"}),
		classificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payload_classifications_total",
			Help:      "Total number of payload classifications by detected format.",
		}, []string{"format"}),
		operationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Total number of message operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Message operation latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.httpRequestTotal,
		m.httpRequestDuration,
		m.refreshTotal,
		m.refreshDuration,
		m.refreshQueueCount,
		m.reconnectTotal,
		m.classificationTotal,
		m.operationTotal,
		m.operationDuration,
	)

	return m
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.httpRequestTotal.WithLabelValues(method, path, http.StatusText(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordRefresh(endpoint string, success bool, queueCount int, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}

	m.refreshTotal.WithLabelValues(endpoint, outcome).Inc()
	m.refreshDuration.WithLabelValues(endpoint).Observe(duration.Seconds())

	if success {
		m.refreshQueueCount.WithLabelValues(endpoint).Set(float64(queueCount))
	}
}

func (m *PrometheusMetrics) RecordReconnectAttempt(endpoint string) {
	m.reconnectTotal.WithLabelValues(endpoint).Inc()
}

func (m *PrometheusMetrics) RecordClassification(format string) {
	m.classificationTotal.WithLabelValues(format).Inc()
}

func (m *PrometheusMetrics) RecordOperation(operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}

	m.operationTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler exposes the registry for the /metrics endpoint.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
