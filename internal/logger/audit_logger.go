package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogArtifactPromoted logs the current selector moving to a new version.
func (al *AuditLogger) LogArtifactPromoted(version, previous, algorithm string, trainedAt time.Time) {
	al.WithFields(logrus.Fields{
		"model_version":    version,
		"previous_version": previous,
		"algorithm":        algorithm,
		"trained_at":       trainedAt.Unix(),
	}).Info("Model artifact promoted")
}

// LogRegistryReload logs the serving registry swapping artifacts.
func (al *AuditLogger) LogRegistryReload(oldVersion, newVersion string) {
	al.WithFields(logrus.Fields{
		"old_version": oldVersion,
		"new_version": newVersion,
	}).Info("Model registry reloaded")
}

// LogPredictionUpserted logs a stored prediction.
func (al *AuditLogger) LogPredictionUpserted(matchID int64, modelVersion string) {
	al.WithFields(logrus.Fields{
		"match_id":      matchID,
		"model_version": modelVersion,
	}).Info("Prediction stored")
}

// LogRetrainingTriggered logs an error-driven retraining run starting.
func (al *AuditLogger) LogRetrainingTriggered(trigger string, evaluated int, weighting string) {
	al.WithFields(logrus.Fields{
		"trigger":   trigger,
		"evaluated": evaluated,
		"weighting": weighting,
	}).Info("Retraining triggered")
}
