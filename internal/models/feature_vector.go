package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FeatureVector is the point-in-time feature row for one match. Names and
// Values are parallel slices in schema order.
type FeatureVector struct {
	MatchID       int64          `db:"match_id" json:"match_id"`
	SchemaVersion string         `db:"schema_version" json:"schema_version"`
	Names         []string       `json:"names"`
	Values        []float64      `json:"values"`
	BuiltAt       time.Time      `db:"built_at" json:"built_at"`
	Quality       FeatureQuality `json:"quality"`
}

// FeatureQuality records how much history backed a vector.
type FeatureQuality struct {
	HomeFormSamples int  `json:"home_form_samples"`
	AwayFormSamples int  `json:"away_form_samples"`
	H2HMeetings     int  `json:"h2h_meetings"`
	ColdStart       bool `json:"cold_start"`
}

// Len returns the number of features.
func (fv *FeatureVector) Len() int {
	return len(fv.Names)
}

// Get retrieves a feature value by name.
func (fv *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range fv.Names {
		if n == name {
			return fv.Values[i], true
		}
	}
	return 0, false
}

// Map returns an unordered copy of the features.
func (fv *FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(fv.Names))
	for i, n := range fv.Names {
		out[n] = fv.Values[i]
	}
	return out
}

// Validate checks the parallel slices line up.
func (fv *FeatureVector) Validate() error {
	if len(fv.Names) != len(fv.Values) {
		return fmt.Errorf("feature vector for match %d has %d names and %d values", fv.MatchID, len(fv.Names), len(fv.Values))
	}
	return nil
}

// MarshalFeatures encodes the ordered features for storage in a JSONB column.
func (fv *FeatureVector) MarshalFeatures() (json.RawMessage, error) {
	return json.Marshal(struct {
		Names   []string       `json:"names"`
		Values  []float64      `json:"values"`
		Quality FeatureQuality `json:"quality"`
	}{fv.Names, fv.Values, fv.Quality})
}

// UnmarshalFeatures decodes a JSONB column written by MarshalFeatures.
func (fv *FeatureVector) UnmarshalFeatures(raw []byte) error {
	var payload struct {
		Names   []string       `json:"names"`
		Values  []float64      `json:"values"`
		Quality FeatureQuality `json:"quality"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	fv.Names = payload.Names
	fv.Values = payload.Values
	fv.Quality = payload.Quality
	return fv.Validate()
}
