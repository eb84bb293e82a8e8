package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		return nil
	}
	return logEntry
}

func TestLoggerLevelsAndFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(buf, "debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = New(buf, "nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestFeatureLoggerCacheLookup(t *testing.T) {
	log, buf := setupTestLogger()
	NewFeatureLogger(log).LogCacheLookup("h2h", "h2h:1:2:2024", true)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "features", logEntry["component"])
	assert.Equal(t, "h2h", logEntry["cache"])
	assert.Equal(t, true, logEntry["cache_hit"])
}

func TestFeatureLoggerBuildError(t *testing.T) {
	log, buf := setupTestLogger()
	NewFeatureLogger(log).LogFeatureBuildError(500, errors.New("boom"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(500), logEntry["match_id"])
	assert.Equal(t, "boom", logEntry["error"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestMLLoggerCandidateScore(t *testing.T) {
	log, buf := setupTestLogger()
	NewMLLogger(log).LogCandidateScore("logistic", 0.61, 1.02)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "ml", logEntry["component"])
	assert.Equal(t, "logistic", logEntry["algorithm"])
	assert.InDelta(t, 0.61, logEntry["cv_auc"], 1e-9)
}

func TestMLLoggerPredictionError(t *testing.T) {
	log, buf := setupTestLogger()
	NewMLLogger(log).LogMLPredictionError(42, "schema mismatch")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "schema mismatch", logEntry["error_reason"])
}

func TestAuditLoggerArtifactPromoted(t *testing.T) {
	log, buf := setupTestLogger()
	trainedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	NewAuditLogger(log).LogArtifactPromoted("logistic_20240501_120000_ab12cd34", "", "logistic", trainedAt)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "logistic_20240501_120000_ab12cd34", logEntry["model_version"])
	assert.Equal(t, float64(trainedAt.Unix()), logEntry["trained_at"])
}
