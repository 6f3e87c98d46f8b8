package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GenerationOutcome labels a finished generation run.
type GenerationOutcome string

const (
	OutcomeComplete  GenerationOutcome = "complete"
	OutcomePartial   GenerationOutcome = "partial"
	OutcomeFailed    GenerationOutcome = "failed"
	OutcomeCancelled GenerationOutcome = "cancelled"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the generator.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	generationDuration *prometheus.HistogramVec
	generationAttempts prometheus.Histogram
	generationCoverage prometheus.Gauge
	generationConflict prometheus.Gauge
	generationJobs     *prometheus.GaugeVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of timetable generation runs",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	generationAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_attempts",
		Help:    "Attempts run per generation",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 150},
	})

	generationCoverage := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_generation_coverage_ratio",
		Help: "Placed over required lesson hours of the latest generation",
	})

	generationConflict := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_generation_conflicts",
		Help: "Teacher double bookings in the latest generated grid",
	})

	generationJobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timetable_generation_jobs",
		Help: "Background generation jobs by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheLookups,
		generationDuration, generationAttempts, generationCoverage, generationConflict, generationJobs,
		goroutines,
	)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheLookups:       cacheLookups,
		generationDuration: generationDuration,
		generationAttempts: generationAttempts,
		generationCoverage: generationCoverage,
		generationConflict: generationConflict,
		generationJobs:     generationJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveGeneration records a finished generation run.
func (m *MetricsService) ObserveGeneration(outcome GenerationOutcome, duration time.Duration, attempts int, coverage float64, conflicts int) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
	m.generationAttempts.Observe(float64(attempts))
	m.generationCoverage.Set(coverage)
	m.generationConflict.Set(float64(conflicts))
}

// JobStatusChanged moves one job between status gauges. An empty from only increments.
func (m *MetricsService) JobStatusChanged(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.generationJobs.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.generationJobs.WithLabelValues(to).Inc()
	}
}
