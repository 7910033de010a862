// Package metrics instruments calls to the classifier API and the console's
// own HTTP routes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they need
type Metrics struct {
	registry *prometheus.Registry

	apiCallDuration *prometheus.HistogramVec
	apiCallTotal    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
}

// New registers the console metrics on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_api_call_duration_seconds",
				Help:    "Classifier API call duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"operation", "status"},
		),
		apiCallTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_api_calls_total",
				Help: "Total number of classifier API calls",
			},
			[]string{"operation", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "Console HTTP request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "route", "status"},
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_uploaded_emails_total",
				Help: "Emails sent through batch uploads by outcome",
			},
			[]string{"outcome"}, // outcome: success, failed
		),
	}

	m.registry.MustRegister(m.apiCallDuration, m.apiCallTotal, m.httpDuration, m.uploadsTotal)
	return m
}

// ObserveCall records one classifier API call
func (m *Metrics) ObserveCall(operation, status string, duration time.Duration) {
	m.apiCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	m.apiCallTotal.WithLabelValues(operation, status).Inc()
}

// RecordUpload counts the outcome of a batch upload
func (m *Metrics) RecordUpload(success, failed int) {
	m.uploadsTotal.WithLabelValues("success").Add(float64(success))
	m.uploadsTotal.WithLabelValues("failed").Add(float64(failed))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request durations labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
