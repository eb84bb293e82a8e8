// Package metrics provides the centralized Prometheus registry for the forecasting engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchcast"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Feature engine metrics
var (
	FeatureBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feature_builds_total",
		Help:      "Total number of feature vector builds by status",
	}, []string{"status"})

	FeatureBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feature_build_duration_seconds",
		Help:      "Duration of full feature vector builds in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Keyed cache lookups by cache name and result",
	}, []string{"cache", "result"})

	CacheHitRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_hit_ratio",
		Help:      "Keyed cache hit ratio by cache name",
	}, []string{"cache"})

	ColdStartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cold_starts_total",
		Help:      "Feature computations that fell back to default values",
	}, []string{"source"})
)

// Serving metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total number of predictions served by most likely outcome",
	}, []string{"model_version", "outcome"})

	PredictionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_failures_total",
		Help:      "Prediction requests that failed by reason",
	}, []string{"reason"})

	PredictionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_latency_seconds",
		Help:      "Latency of single match predictions in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	ModelLoaded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_loaded",
		Help:      "1 for the artifact version currently served",
	}, []string{"model_version", "algorithm"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(FeatureBuildsTotal)
		registry.MustRegister(FeatureBuildDuration)
		registry.MustRegister(CacheLookupsTotal)
		registry.MustRegister(CacheHitRatio)
		registry.MustRegister(ColdStartsTotal)

		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(PredictionFailuresTotal)
		registry.MustRegister(PredictionLatency)
		registry.MustRegister(ModelLoaded)

		registry.MustRegister(TrainingRunsTotal)
		registry.MustRegister(TrainingDuration)
		registry.MustRegister(HeldOutMetric)
		registry.MustRegister(CandidateCVScore)
		registry.MustRegister(DatasetRowsSkippedTotal)
		registry.MustRegister(RetrainingRunsTotal)
		registry.MustRegister(EvaluatedPredictions)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordFeatureBuild records a feature vector build.
func RecordFeatureBuild(status string, durationSeconds float64) {
	FeatureBuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		FeatureBuildDuration.Observe(durationSeconds)
	}
}

// RecordCacheLookup records a keyed cache hit or miss and the running ratio.
func RecordCacheLookup(cache string, hit bool, ratio float64) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cache, result).Inc()
	CacheHitRatio.WithLabelValues(cache).Set(ratio)
}

// RecordColdStart records a fallback to documented defaults.
func RecordColdStart(source string) {
	ColdStartsTotal.WithLabelValues(source).Inc()
}

// RecordPrediction records a served prediction.
func RecordPrediction(modelVersion, outcome string, durationSeconds float64) {
	PredictionsTotal.WithLabelValues(modelVersion, outcome).Inc()
	PredictionLatency.Observe(durationSeconds)
}

// RecordPredictionFailure records a failed prediction by reason.
func RecordPredictionFailure(reason string) {
	PredictionFailuresTotal.WithLabelValues(reason).Inc()
}

// SetModelLoaded marks the served artifact version.
func SetModelLoaded(version, algorithm string) {
	ModelLoaded.Reset()
	ModelLoaded.WithLabelValues(version, algorithm).Set(1)
}
