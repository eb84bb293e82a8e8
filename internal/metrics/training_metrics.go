package metrics

import "github.com/prometheus/client_golang/prometheus"

// Training counter vectors
var (
	TrainingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "training_runs_total",
		Help:      "Total number of training runs by algorithm and status",
	}, []string{"algorithm", "status"})

	DatasetRowsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dataset_rows_skipped_total",
		Help:      "Matches skipped while building training tables by reason",
	}, []string{"reason"})

	RetrainingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retraining_runs_total",
		Help:      "Error-driven retraining runs by trigger and status",
	}, []string{"trigger", "status"})
)

// Training histograms
var (
	TrainingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "training_duration_seconds",
		Help:      "Duration of training runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	}, []string{"algorithm"})
)

// Training gauges
var (
	HeldOutMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "held_out_metric",
		Help:      "Held-out evaluation metrics of the last promoted artifact",
	}, []string{"metric"})

	CandidateCVScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "candidate_cv_auc",
		Help:      "Cross-validated macro AUC of each candidate family in the last run",
	}, []string{"algorithm"})

	EvaluatedPredictions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "evaluated_predictions",
		Help:      "Outcome of the last error analysis run",
	}, []string{"field"})
)

// RecordTrainingRun records a training run.
// status should be one of: "success", "failure", "aborted"
func RecordTrainingRun(algorithm, status string, durationSeconds float64) {
	TrainingRunsTotal.WithLabelValues(algorithm, status).Inc()
	if status == "success" {
		TrainingDuration.WithLabelValues(algorithm).Observe(durationSeconds)
	}
}

// RecordHeldOutMetrics publishes the held-out metrics of a promoted artifact.
func RecordHeldOutMetrics(values map[string]float64) {
	for name, v := range values {
		HeldOutMetric.WithLabelValues(name).Set(v)
	}
}

// RecordCandidateScore publishes one candidate's cross-validated score.
func RecordCandidateScore(algorithm string, auc float64) {
	CandidateCVScore.WithLabelValues(algorithm).Set(auc)
}

// RecordDatasetSkips adds per-reason skip counts from a dataset build.
func RecordDatasetSkips(failures map[string]int) {
	for reason, n := range failures {
		DatasetRowsSkippedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordRetrainingRun records an error-driven retraining run.
func RecordRetrainingRun(trigger, status string) {
	RetrainingRunsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordErrorReport publishes the headline numbers of an error analysis.
func RecordErrorReport(evaluated int, accuracy, meanLogLoss float64) {
	EvaluatedPredictions.WithLabelValues("count").Set(float64(evaluated))
	EvaluatedPredictions.WithLabelValues("accuracy").Set(accuracy)
	EvaluatedPredictions.WithLabelValues("mean_log_loss").Set(meanLogLoss)
}
