package ml

import (
	"encoding/json"
	"fmt"
)

// envelope tags a serialized classifier with its algorithm.
type envelope struct {
	Algorithm string          `json:"algorithm"`
	Model     json.RawMessage `json:"model"`
}

// MarshalClassifier serializes c with its algorithm tag.
func MarshalClassifier(c Classifier) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s model: %w", c.Algorithm(), err)
	}
	return json.Marshal(envelope{Algorithm: c.Algorithm(), Model: body})
}

// UnmarshalClassifier restores a classifier written by MarshalClassifier.
func UnmarshalClassifier(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}

	var c Classifier
	switch env.Algorithm {
	case AlgorithmLogistic:
		c = &LogisticRegression{}
	case AlgorithmRandomForest:
		c = &RandomForest{}
	case AlgorithmGradientBoosting:
		c = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, env.Algorithm)
	}
	if err := json.Unmarshal(env.Model, c); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", env.Algorithm, err)
	}
	return c, nil
}

// MarshalScaler serializes s.
func MarshalScaler(s *StandardScaler) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalScaler restores a scaler written by MarshalScaler.
func UnmarshalScaler(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if len(s.Mean) != len(s.Std) {
		return nil, fmt.Errorf("%w: scaler has %d means and %d deviations", ErrDimension, len(s.Mean), len(s.Std))
	}
	return &s, nil
}
