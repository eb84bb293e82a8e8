// Package ml implements the 3-way outcome classifiers, feature scaling and
// model selection.
package ml

import "errors"

var (
	// ErrNotFitted indicates a model or scaler was used before Fit
	ErrNotFitted = errors.New("model not fitted")

	// ErrUnknownAlgorithm indicates an unsupported algorithm name
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrDimension indicates input rows of the wrong width
	ErrDimension = errors.New("feature dimension mismatch")

	// ErrEmptyTrainingSet indicates Fit was called without rows
	ErrEmptyTrainingSet = errors.New("empty training set")

	// ErrInvalidLabel indicates a class label outside [0, NumClasses)
	ErrInvalidLabel = errors.New("invalid class label")
)
