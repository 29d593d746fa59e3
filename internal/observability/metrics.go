// Package observability exposes Prometheus metrics for the extraction service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// Metrics collects the service's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	extractions     *prometheus.CounterVec
	missingFields   *prometheus.CounterVec
	ocrDuration     *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics creates the registry and registers every metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vergilevhasi_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vergilevhasi_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vergilevhasi_extractions_total",
		Help: "Tax plate extractions by engine and outcome.",
	}, []string{"engine", "outcome"})
	missing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vergilevhasi_missing_fields_total",
		Help: "Fields reported as not found, by field name.",
	}, []string{"field"})
	ocr := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vergilevhasi_ocr_duration_seconds",
		Help:    "Time spent recognizing and extracting one document.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"engine"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vergilevhasi_cache_lookups_total",
		Help: "Result cache lookups by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, extractions, missing, ocr, cache)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		extractions:     extractions,
		missingFields:   missing,
		ocrDuration:     ocr,
		cacheLookups:    cache,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveExtraction records one extraction. missing names the fields that
// were not found out of total.
func (m *Metrics) ObserveExtraction(engine string, missing []string, total int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeComplete
	switch {
	case len(missing) >= total:
		outcome = OutcomeEmpty
	case len(missing) > 0:
		outcome = OutcomePartial
	}
	m.extractions.WithLabelValues(engine, outcome).Inc()
	for _, f := range missing {
		m.missingFields.WithLabelValues(f).Inc()
	}
	m.ocrDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// ObserveFailure records an extraction that failed before fields could be read.
func (m *Metrics) ObserveFailure(engine string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(engine, OutcomeError).Inc()
}

// ObserveCache records a result cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
