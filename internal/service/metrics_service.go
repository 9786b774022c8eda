package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/serene-scheduler/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface, generation runs,
// the overlay engine and the dataset store.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration prometheus.Histogram
	unfulfilled        prometheus.Gauge
	unscheduledLabs    prometheus.Gauge
	cacheLookups       *prometheus.CounterVec
	replayConflicts    *prometheus.CounterVec
	expiredMods        prometheus.Counter
	datasetDuration    *prometheus.HistogramVec

	requestCount            uint64
	requestDurationTotal    uint64
	generationCount         uint64
	generationDurationTotal uint64
	cacheHitCount           uint64
	cacheMissCount          uint64
	conflictCount           uint64
	expiredCount            uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	unfulfilled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_unfulfilled_lectures",
		Help: "Lectures left unplaced by the most recent generation",
	})

	unscheduledLabs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_unscheduled_labs",
		Help: "Lab group sessions marked unscheduled by the most recent generation",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_cache_lookups_total",
		Help: "Generation cache lookups by result",
	}, []string{"result"})

	replayConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_replay_conflicts_total",
		Help: "Temporal modifications rejected or skipped because they conflict with the schedule",
	}, []string{"type"})

	expiredMods := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_expired_modifications_total",
		Help: "Temporal modifications dropped after expiry",
	})

	datasetDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataset_operation_seconds",
		Help:    "Duration of dataset store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "dataset"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, unfulfilled, unscheduledLabs,
		cacheLookups, replayConflicts, expiredMods, datasetDuration, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		unfulfilled:        unfulfilled,
		unscheduledLabs:    unscheduledLabs,
		cacheLookups:       cacheLookups,
		replayConflicts:    replayConflicts,
		expiredMods:        expiredMods,
		datasetDuration:    datasetDuration,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveGeneration records one completed generation run.
func (m *MetricsService) ObserveGeneration(duration time.Duration, stats models.TimetableStatistics, unfulfilled int) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	m.unfulfilled.Set(float64(unfulfilled))
	m.unscheduledLabs.Set(float64(stats.UnscheduledLabs))
	atomic.AddUint64(&m.generationCount, 1)
	atomic.AddUint64(&m.generationDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheLookup counts a generation cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// RecordReplayConflict counts a conflicting modification.
func (m *MetricsService) RecordReplayConflict(kind models.ModificationType) {
	if m == nil {
		return
	}
	m.replayConflicts.WithLabelValues(string(kind)).Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// RecordExpired counts modifications dropped after expiry.
func (m *MetricsService) RecordExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expiredMods.Add(float64(count))
	atomic.AddUint64(&m.expiredCount, uint64(count))
}

// ObserveDataset records the latency of a dataset store operation.
func (m *MetricsService) ObserveDataset(op, dataset string, duration time.Duration) {
	if m == nil {
		return
	}
	m.datasetDuration.WithLabelValues(op, dataset).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	generations := atomic.LoadUint64(&m.generationCount)
	genDuration := atomic.LoadUint64(&m.generationDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	snapshot := models.SystemMetrics{
		RequestsTotal:        requests,
		Generations:          generations,
		CacheHits:            hits,
		CacheMisses:          misses,
		ReplayConflicts:      atomic.LoadUint64(&m.conflictCount),
		ExpiredModifications: atomic.LoadUint64(&m.expiredCount),
		Goroutines:           runtime.NumGoroutine(),
		GeneratedAt:          time.Now().UTC(),
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if generations > 0 {
		snapshot.AverageGenerationMs = float64(genDuration) / float64(generations) / float64(time.Millisecond)
	}
	if total := hits + misses; total > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(total)
	}
	return snapshot
}
