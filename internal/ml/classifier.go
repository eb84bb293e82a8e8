package ml

import (
	"context"
	"fmt"
	"math"
)

// NumClasses is the number of outcome classes: away, draw, home.
const NumClasses = 3

// Algorithm names.
const (
	AlgorithmAuto             = "auto"
	AlgorithmLogistic         = "logistic"
	AlgorithmRandomForest     = "random_forest"
	AlgorithmGradientBoosting = "gradient_boosting"
)

// Candidates are the algorithms compared when AlgorithmAuto is requested.
var Candidates = []string{AlgorithmLogistic, AlgorithmRandomForest, AlgorithmGradientBoosting}

// Classifier is a fitted multi-class probability model.
type Classifier interface {
	Algorithm() string
	// Fit trains on scaled rows X with labels y and per-row weights w.
	// A nil w means unit weights.
	Fit(ctx context.Context, X [][]float64, y []int, w []float64) error
	// PredictProba returns NumClasses probabilities summing to 1.
	PredictProba(x []float64) ([]float64, error)
	// FeatureImportance returns one non-negative score per column.
	FeatureImportance() []float64
}

// Params groups hyper-parameters for every algorithm.
type Params struct {
	Seed     int64
	Logistic LogisticParams
	Forest   ForestParams
	Boosting BoostingParams
}

// DefaultParams returns hyper-parameters suitable for a few seasons of data.
func DefaultParams() Params {
	return Params{
		Seed:     42,
		Logistic: LogisticParams{LearningRate: 0.1, Epochs: 300, L2: 0.001},
		Forest:   ForestParams{Trees: 100, MaxDepth: 8, MinSamplesLeaf: 5},
		Boosting: BoostingParams{Rounds: 100, MaxDepth: 3, LearningRate: 0.1, MinSamplesLeaf: 5},
	}
}

// New returns an unfitted classifier for algorithm.
func New(algorithm string, p Params) (Classifier, error) {
	switch algorithm {
	case AlgorithmLogistic:
		return NewLogisticRegression(p.Logistic), nil
	case AlgorithmRandomForest:
		return NewRandomForest(p.Forest, p.Seed), nil
	case AlgorithmGradientBoosting:
		return NewGradientBoosting(p.Boosting, p.Seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// PredictAll returns probabilities for every row of X.
func PredictAll(c Classifier, X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		p, err := c.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func validateTrainingSet(X [][]float64, y []int, w []float64) (int, []float64, error) {
	if len(X) == 0 {
		return 0, nil, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, nil, fmt.Errorf("%w: %d rows and %d labels", ErrDimension, len(X), len(y))
	}
	d := len(X[0])
	for i, row := range X {
		if len(row) != d {
			return 0, nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(row), d)
		}
		if y[i] < 0 || y[i] >= NumClasses {
			return 0, nil, fmt.Errorf("%w: %d at row %d", ErrInvalidLabel, y[i], i)
		}
	}
	if w == nil {
		w = make([]float64, len(X))
		for i := range w {
			w[i] = 1
		}
	} else if len(w) != len(X) {
		return 0, nil, fmt.Errorf("%w: %d rows and %d weights", ErrDimension, len(X), len(w))
	}
	return d, w, nil
}

// softmax writes normalized probabilities for logits z into out.
func softmax(z, out []float64) {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	var sum float64
	for k, v := range z {
		out[k] = math.Exp(v - maxZ)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}

// normalizeImportance scales scores to sum to 1, leaving all-zero input as is.
func normalizeImportance(scores []float64) []float64 {
	out := make([]float64, len(scores))
	var sum float64
	for _, v := range scores {
		sum += v
	}
	if sum <= 0 {
		return out
	}
	for i, v := range scores {
		out[i] = v / sum
	}
	return out
}
