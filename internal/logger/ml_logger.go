package logger

import (
	"github.com/sirupsen/logrus"
)

// MLLogger provides dedicated logging for ML operations.
type MLLogger struct {
	*logrus.Entry
}

// NewMLLogger creates a new ML logger.
func NewMLLogger(baseLogger *logrus.Logger) *MLLogger {
	return &MLLogger{
		Entry: baseLogger.WithField("component", "ml"),
	}
}

// LogDatasetBuilt logs the outcome of a dataset build.
func (ml *MLLogger) LogDatasetBuilt(seasons []int, total, built, skipped int) {
	ml.WithFields(logrus.Fields{
		"seasons": seasons,
		"total":   total,
		"built":   built,
		"skipped": skipped,
	}).Info("Training dataset assembled")
}

// LogCandidateScore logs the cross-validated score of one classifier family.
func (ml *MLLogger) LogCandidateScore(algorithm string, auc, logLoss float64) {
	ml.WithFields(logrus.Fields{
		"algorithm":   algorithm,
		"cv_auc":      auc,
		"cv_log_loss": logLoss,
	}).Info("Candidate cross-validated")
}

// LogModelTraining logs model training events.
func (ml *MLLogger) LogModelTraining(modelName string, trainingDuration float64, metrics map[string]float64, hyperparameters map[string]interface{}) {
	ml.WithFields(logrus.Fields{
		"model_name":        modelName,
		"training_duration": trainingDuration,
		"metrics":           metrics,
		"hyperparameters":   hyperparameters,
	}).Info("Model training completed")
}

// LogPrediction logs a served prediction.
func (ml *MLLogger) LogPrediction(matchID int64, modelVersion string, pHome, pDraw, pAway float64, latencyMs float64) {
	ml.WithFields(logrus.Fields{
		"match_id":      matchID,
		"model_version": modelVersion,
		"p_home":        pHome,
		"p_draw":        pDraw,
		"p_away":        pAway,
		"latency_ms":    latencyMs,
	}).Debug("Prediction served")
}

// LogMLPredictionError logs ML prediction errors.
func (ml *MLLogger) LogMLPredictionError(matchID int64, errorReason string) {
	ml.WithFields(logrus.Fields{
		"match_id":     matchID,
		"error_reason": errorReason,
	}).Error("ML prediction failed")
}

// LogErrorReport logs the aggregate of an evaluation run.
func (ml *MLLogger) LogErrorReport(evaluated int, accuracy, meanLogLoss float64) {
	ml.WithFields(logrus.Fields{
		"evaluated":     evaluated,
		"accuracy":      accuracy,
		"mean_log_loss": meanLogLoss,
	}).Info("Prediction error report computed")
}
