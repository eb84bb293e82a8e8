package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column and scales it to unit variance.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes column statistics from X.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	d := len(X[0])
	s := &StandardScaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			if len(row) != d {
				return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(row), d)
			}
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if len(X) < 2 || math.IsNaN(std) || std < 1e-12 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

// Dim returns the number of columns the scaler was fitted on.
func (s *StandardScaler) Dim() int {
	return len(s.Mean)
}

// TransformRow returns a scaled copy of x.
func (s *StandardScaler) TransformRow(x []float64) ([]float64, error) {
	if s == nil || len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDimension, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
