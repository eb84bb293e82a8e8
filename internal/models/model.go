package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArtifactMetadata describes a trained model bundle. It is written once next
// to the serialized model and scaler and never modified afterwards.
type ArtifactMetadata struct {
	Version           string             `json:"model_version" validate:"required"`
	RunID             uuid.UUID          `json:"run_id"`
	Algorithm         string             `json:"algorithm" validate:"required"`
	SchemaVersion     string             `json:"schema_version" validate:"required"`
	FeatureSchema     []string           `json:"feature_names" validate:"required,min=1"`
	TrainSeasons      []int              `json:"train_seasons"`
	ValidSeason       *int               `json:"valid_season,omitempty"`
	ValidFraction     float64            `json:"valid_fraction,omitempty"`
	Samples           int                `json:"samples"`
	ValidSamples      int                `json:"valid_samples"`
	Weighting         string             `json:"weighting,omitempty"`
	ParentVersion     string             `json:"parent_version,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	CVScores          map[string]float64 `json:"cv_scores,omitempty"`
	Metrics           json.RawMessage    `json:"metrics"`
	TrainedAt         time.Time          `json:"trained_at"`
}

// GetMetric retrieves a scalar metric from the Metrics JSON
func (m *ArtifactMetadata) GetMetric(name string) (interface{}, error) {
	if m.Metrics == nil {
		return nil, nil
	}

	var metrics map[string]interface{}
	if err := json.Unmarshal(m.Metrics, &metrics); err != nil {
		return nil, err
	}

	return metrics[name], nil
}

// IsRetrained reports whether the artifact came out of the error-driven loop.
func (m *ArtifactMetadata) IsRetrained() bool {
	return m.ParentVersion != ""
}
