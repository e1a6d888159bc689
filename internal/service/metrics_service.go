package service

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-scheduler/internal/models"
)

// MetricsService owns the Prometheus registry of the scheduling engine. A nil service is a no-op.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	runDuration   *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	successRate   *prometheus.GaugeVec
	fitness       *prometheus.GaugeVec
	generations   *prometheus.HistogramVec
	unmet         *prometheus.CounterVec
	comparisons   *prometheus.CounterVec
	cacheLatency  prometheus.Observer
	cacheWrite    prometheus.Observer
	cacheHitRatio prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the scheduler collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Wall time of scheduler runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"algorithm"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Scheduler runs by terminal status",
	}, []string{"algorithm", "status"})

	successRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_success_rate_percent",
		Help: "Success rate of the most recent run",
	}, []string{"algorithm"})

	fitness := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_fitness",
		Help: "Fitness of the most recent run",
	}, []string{"algorithm"})

	generations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_generations",
		Help:    "Generations evolved per genetic or hybrid run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"algorithm"})

	unmet := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_unmet_constraints_total",
		Help: "Constraints left short of their sessions, by reason",
	}, []string{"algorithm", "reason"})

	comparisons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_comparisons_total",
		Help: "Comparison runs by winning algorithm",
	}, []string{"best"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(runDuration, runsTotal, successRate, fitness, generations, unmet, comparisons,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runDuration:   runDuration,
		runsTotal:     runsTotal,
		successRate:   successRate,
		fitness:       fitness,
		generations:   generations,
		unmet:         unmet,
		comparisons:   comparisons,
		cacheLatency:  cacheLatency,
		cacheWrite:    cacheWrite,
		cacheHitRatio: cacheHitRatio,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
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

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a completed run.
func (m *MetricsService) ObserveRun(report models.RunReport, duration time.Duration) {
	if m == nil {
		return
	}
	algorithm := string(report.Algorithm)
	m.runDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	m.runsTotal.WithLabelValues(algorithm, string(models.RunStatusCompleted)).Inc()
	m.successRate.WithLabelValues(algorithm).Set(report.SuccessRate)
	m.fitness.WithLabelValues(algorithm).Set(report.Fitness)
	if report.Algorithm != models.AlgorithmGreedy {
		m.generations.WithLabelValues(algorithm).Observe(float64(report.Generations))
	}
	for _, f := range report.FailedAssignments {
		m.unmet.WithLabelValues(algorithm, string(f.Reason)).Inc()
	}
}

// ObserveFailure records a run aborted by an error.
func (m *MetricsService) ObserveFailure(algorithm models.Algorithm, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(string(algorithm)).Observe(duration.Seconds())
	m.runsTotal.WithLabelValues(string(algorithm), string(models.RunStatusFailed)).Inc()
}

// ObserveComparison records the winner of a comparison.
func (m *MetricsService) ObserveComparison(best models.Algorithm) {
	if m == nil {
		return
	}
	label := string(best)
	if label == "" {
		label = "none"
	}
	m.comparisons.WithLabelValues(label).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
