package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// FeatureLogger provides dedicated logging for the point-in-time feature engine.
type FeatureLogger struct {
	*logrus.Entry
}

// NewFeatureLogger creates a new feature logger.
func NewFeatureLogger(baseLogger *logrus.Logger) *FeatureLogger {
	return &FeatureLogger{
		Entry: baseLogger.WithField("component", "features"),
	}
}

// LogCacheLookup logs a keyed cache hit or miss.
func (fl *FeatureLogger) LogCacheLookup(cacheName, key string, hit bool) {
	fl.WithFields(logrus.Fields{
		"cache":     cacheName,
		"cache_key": key,
		"cache_hit": hit,
	}).Debug("Feature cache lookup")
}

// LogFeatureBuild logs a completed feature vector build.
func (fl *FeatureLogger) LogFeatureBuild(matchID int64, schemaVersion string, featureCount int, duration time.Duration) {
	fl.WithFields(logrus.Fields{
		"match_id":       matchID,
		"schema_version": schemaVersion,
		"feature_count":  featureCount,
		"duration_ms":    float64(duration.Microseconds()) / 1000,
	}).Debug("Feature vector built")
}

// LogColdStart logs a component falling back to its documented defaults.
func (fl *FeatureLogger) LogColdStart(source string, teamID int64, season int, samples int) {
	fl.WithFields(logrus.Fields{
		"source":  source,
		"team_id": teamID,
		"season":  season,
		"samples": samples,
	}).Debug("Cold start defaults applied")
}

// LogSkippedRecord logs a history record excluded for data integrity reasons.
func (fl *FeatureLogger) LogSkippedRecord(matchID int64, reason string) {
	fl.WithFields(logrus.Fields{
		"match_id": matchID,
		"reason":   reason,
	}).Debug("History record skipped")
}

// LogFeatureBuildError logs a failed feature vector build.
func (fl *FeatureLogger) LogFeatureBuildError(matchID int64, err error) {
	fl.WithFields(logrus.Fields{
		"match_id": matchID,
		"error":    err.Error(),
	}).Warn("Feature vector build failed")
}
