package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the progress engine
type Metrics struct {
	// Write path
	CompletionsRecorded *prometheus.CounterVec
	CompletionDuration  prometheus.Histogram
	StreakTransitions   *prometheus.CounterVec

	// Cache
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheInvalidations *prometheus.CounterVec

	// Aggregates
	AggregateComputeDuration *prometheus.HistogramVec

	// Analytics
	InsightsGenerated       *prometheus.CounterVec
	RecommendationsComputed prometheus.Counter

	// Background jobs
	JobsEnqueued *prometheus.CounterVec
	JobsExecuted *prometheus.CounterVec
	JobRetries   prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			CompletionsRecorded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_completions_recorded_total",
					Help: "Total number of completion events appended to the ledger",
				},
				[]string{"body_area", "difficulty"},
			),
			CompletionDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "progress_completion_write_duration_seconds",
					Help:    "Duration of the full write path (append, streak, invalidate, enqueue)",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
				},
			),
			StreakTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_streak_transitions_total",
					Help: "Total number of streak state transitions",
				},
				[]string{"streak_type", "transition"}, // transition: started, extended, reset, noop
			),

			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "progress_cache_hits_total",
					Help: "Total number of cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "progress_cache_misses_total",
					Help: "Total number of cache misses",
				},
			),
			CacheInvalidations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_cache_invalidations_total",
					Help: "Total number of post-write cache invalidations",
				},
				[]string{"pattern"},
			),

			AggregateComputeDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "progress_aggregate_compute_duration_seconds",
					Help:    "Duration of ledger aggregate computation on cache miss",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
				},
				[]string{"aggregate"},
			),

			InsightsGenerated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_insights_generated_total",
					Help: "Total number of insights generated",
				},
				[]string{"insight_type"},
			),
			RecommendationsComputed: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "progress_recommendations_computed_total",
					Help: "Total number of recommendation sets computed",
				},
			),

			JobsEnqueued: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_jobs_enqueued_total",
					Help: "Total number of recompute jobs enqueued",
				},
				[]string{"job_type"},
			),
			JobsExecuted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "progress_jobs_executed_total",
					Help: "Total number of recompute jobs executed",
				},
				[]string{"job_type", "result"},
			),
			JobRetries: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "progress_job_retries_total",
					Help: "Total number of recompute job retries",
				},
			),
		}
	})

	return sharedMetrics
}
