package models

import (
	"errors"
	"fmt"
	"strings"
)

// Caller-visible error categories
var (
	ErrNotFound            = errors.New("record not found")
	ErrNotPredictable      = errors.New("match is not predictable")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrServiceNotReady     = errors.New("prediction service not ready")
)

// Internal error categories
var (
	ErrArtifactMissing = errors.New("no current model artifact")
	ErrDataIntegrity   = errors.New("data integrity violation")
	ErrSchemaMismatch  = errors.New("feature schema mismatch")
	ErrCacheStale      = errors.New("cache entry stale")
	ErrDuplicateKey    = errors.New("duplicate key violation")
)

// DataIntegrityError reports a record that cannot be used, e.g. a finished
// match without a score.
type DataIntegrityError struct {
	MatchID int64
	Reason  string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("match %d: %s", e.MatchID, e.Reason)
}

// Unwrap lets errors.Is match ErrDataIntegrity.
func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// SchemaMismatchError reports a feature vector whose ordered names differ
// from the schema a model was trained on.
type SchemaMismatchError struct {
	ModelVersion string
	Expected     []string
	Got          []string
	Index        int
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "feature schema mismatch for model %s: ", e.ModelVersion)
	switch {
	case len(e.Expected) != len(e.Got):
		fmt.Fprintf(&b, "expected %d features, got %d", len(e.Expected), len(e.Got))
	case e.Index >= 0 && e.Index < len(e.Expected):
		fmt.Fprintf(&b, "position %d expected %q, got %q", e.Index, e.Expected[e.Index], e.Got[e.Index])
	default:
		b.WriteString("ordering differs")
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrSchemaMismatch.
func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

// CheckSchema compares names against the expected ordered schema.
func CheckSchema(version string, expected, got []string) error {
	if len(expected) != len(got) {
		return &SchemaMismatchError{ModelVersion: version, Expected: expected, Got: got, Index: -1}
	}
	for i := range expected {
		if expected[i] != got[i] {
			return &SchemaMismatchError{ModelVersion: version, Expected: expected, Got: got, Index: i}
		}
	}
	return nil
}
