// Package prometheus instruments pluck services and the web server with
// Prometheus metrics.
package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics holds the collectors registered by NewMetrics.
type Metrics struct {
	ExtractionsTotal    *prometheus.CounterVec
	ExtractionDuration  prometheus.Histogram
	ExtractionsInFlight prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluck_extractions_total",
				Help: "Total number of extraction calls by outcome and error kind.",
			},
			[]string{"outcome", "kind"},
		),
		ExtractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pluck_extraction_duration_seconds",
				Help:    "Duration of extraction calls, including job polling.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
		),
		ExtractionsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pluck_extractions_in_flight",
				Help: "Number of extraction calls currently running.",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluck_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluck_http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Ensure InstrumentedExtractor implements pluck.Extractor.
var _ pluck.Extractor = (*InstrumentedExtractor)(nil)

// InstrumentedExtractor records metrics for every extraction call.
type InstrumentedExtractor struct {
	next    pluck.Extractor
	metrics *Metrics
}

// NewInstrumentedExtractor creates a new InstrumentedExtractor.
func NewInstrumentedExtractor(next pluck.Extractor, metrics *Metrics) *InstrumentedExtractor {
	return &InstrumentedExtractor{next: next, metrics: metrics}
}

// Extract delegates to the wrapped extractor.
func (e *InstrumentedExtractor) Extract(ctx context.Context, credential string, urls []string, opts pluck.ExtractOptions) (resp *pluck.ExtractResponse, err error) {
	e.metrics.ExtractionsInFlight.Inc()
	defer func(begin time.Time) {
		e.metrics.ExtractionsInFlight.Dec()
		e.metrics.ExtractionDuration.Observe(time.Since(begin).Seconds())

		switch {
		case err != nil:
			e.metrics.ExtractionsTotal.WithLabelValues(OutcomeError, string(pluck.Classify(err))).Inc()
		case resp != nil && resp.Success:
			e.metrics.ExtractionsTotal.WithLabelValues(OutcomeSuccess, "").Inc()
		default:
			e.metrics.ExtractionsTotal.WithLabelValues(OutcomeFailure, string(pluck.KindExtractionFailed)).Inc()
		}
	}(time.Now())
	return e.next.Extract(ctx, credential, urls, opts)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and durations. Requests are labeled by
// the matched route pattern so path parameters don't create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rw.statusCode)
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}
