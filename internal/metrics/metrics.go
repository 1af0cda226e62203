// Package metrics provides Prometheus metrics for the API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ChatDispatchesTotal *prometheus.CounterVec
	ChatDuration        prometheus.Histogram
	RateLimitRejections *prometheus.CounterVec
	FilesProcessedTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nabd_http_requests_total",
				Help: "Total HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nabd_http_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ChatDispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nabd_chat_dispatches_total",
				Help: "Chat dispatches by intent kind and outcome.",
			},
			[]string{"intent", "outcome"},
		),
		ChatDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nabd_chat_duration_seconds",
				Help:    "End-to-end chat dispatch duration.",
				Buckets: prometheus.DefBuckets,
			},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nabd_ratelimit_rejections_total",
				Help: "Rate-limited requests by limiter name.",
			},
			[]string{"limiter"},
		),
		FilesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nabd_files_processed_total",
				Help: "Background file processing attempts by result.",
			},
			[]string{"result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ChatDispatchesTotal)
	reg.MustRegister(m.ChatDuration)
	reg.MustRegister(m.RateLimitRejections)
	reg.MustRegister(m.FilesProcessedTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveRequest records request duration.
func (m *Metrics) ObserveRequest(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordDispatch increments the chat dispatch counter.
func (m *Metrics) RecordDispatch(intent, outcome string) {
	m.ChatDispatchesTotal.WithLabelValues(intent, outcome).Inc()
}

// ObserveDispatch records chat dispatch duration.
func (m *Metrics) ObserveDispatch(seconds float64) {
	m.ChatDuration.Observe(seconds)
}

// RecordRejection increments the rate-limit rejection counter.
func (m *Metrics) RecordRejection(limiter string) {
	m.RateLimitRejections.WithLabelValues(limiter).Inc()
}

// RecordFileProcessed increments the file processing counter.
func (m *Metrics) RecordFileProcessed(result string) {
	m.FilesProcessedTotal.WithLabelValues(result).Inc()
}
