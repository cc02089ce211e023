package rulestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_rulestore_cache_hits_total",
		Help: "Total number of rule store cache hits by environment",
	}, []string{"environment"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_rulestore_cache_misses_total",
		Help: "Total number of rule store cache misses by environment",
	}, []string{"environment"})

	refreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_rulestore_refresh_duration_seconds",
		Help:    "Time taken to refresh assignments and rules by environment",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"environment"})

	refreshErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_rulestore_refresh_errors_total",
		Help: "Total number of failed or skipped refreshes by environment",
	}, []string{"environment"})

	versionResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_rulestore_version_resets_total",
		Help: "Total number of full cache resets caused by a cache version change",
	})

	staleServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_rulestore_stale_serves_total",
		Help: "Total number of stale entries served after a failed refresh",
	}, []string{"environment"})

	entryAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pricing_rulestore_entry_age_seconds",
		Help: "Age of the cached entry in seconds by environment",
	}, []string{"environment"})

	cachedRules = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pricing_rulestore_cached_rules",
		Help: "Number of active pricing rules cached by environment",
	}, []string{"environment"})
)

// MetricsRecorder records rule store metrics.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

func (m *MetricsRecorder) RecordHit(env string) {
	cacheHits.WithLabelValues(env).Inc()
}

func (m *MetricsRecorder) RecordMiss(env string) {
	cacheMisses.WithLabelValues(env).Inc()
}

// RecordRefresh records a refresh attempt that reached the backend.
func (m *MetricsRecorder) RecordRefresh(env string, durationSeconds float64, success bool) {
	refreshDuration.WithLabelValues(env).Observe(durationSeconds)
	if !success {
		refreshErrors.WithLabelValues(env).Inc()
	}
}

// RecordSkippedRefresh records a refresh rejected by the circuit breaker.
func (m *MetricsRecorder) RecordSkippedRefresh(env string) {
	refreshErrors.WithLabelValues(env).Inc()
}

func (m *MetricsRecorder) RecordVersionReset() {
	versionResets.Inc()
}

func (m *MetricsRecorder) RecordStaleServe(env string) {
	staleServes.WithLabelValues(env).Inc()
}

func (m *MetricsRecorder) RecordEntry(env string, rules int) {
	cachedRules.WithLabelValues(env).Set(float64(rules))
	entryAge.WithLabelValues(env).Set(0)
}

func (m *MetricsRecorder) RecordAge(env string, ageSeconds float64) {
	entryAge.WithLabelValues(env).Set(ageSeconds)
}

// ClearEnvironment drops the gauges of an invalidated environment.
func (m *MetricsRecorder) ClearEnvironment(env string) {
	entryAge.DeleteLabelValues(env)
	cachedRules.DeleteLabelValues(env)
}
