package ml

import (
	"context"
	"fmt"
	"math"
)

// LogisticParams configures softmax regression.
type LogisticParams struct {
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	L2           float64 `json:"l2"`
}

// LogisticRegression is a multinomial softmax model trained with full-batch
// gradient descent on weighted log-loss.
type LogisticRegression struct {
	Params  LogisticParams `json:"params"`
	Weights [][]float64    `json:"weights"` // [class][feature]
	Bias    []float64      `json:"bias"`
}

// NewLogisticRegression creates an unfitted model.
func NewLogisticRegression(p LogisticParams) *LogisticRegression {
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.Epochs <= 0 {
		p.Epochs = 300
	}
	return &LogisticRegression{Params: p}
}

// Algorithm implements Classifier
func (m *LogisticRegression) Algorithm() string {
	return AlgorithmLogistic
}

// Fit implements Classifier
func (m *LogisticRegression) Fit(ctx context.Context, X [][]float64, y []int, w []float64) error {
	d, w, err := validateTrainingSet(X, y, w)
	if err != nil {
		return err
	}

	var totalWeight float64
	for _, wi := range w {
		totalWeight += wi
	}
	if totalWeight <= 0 {
		return fmt.Errorf("%w: weights sum to %v", ErrEmptyTrainingSet, totalWeight)
	}

	m.Weights = make([][]float64, NumClasses)
	for k := range m.Weights {
		m.Weights[k] = make([]float64, d)
	}
	m.Bias = make([]float64, NumClasses)

	gradW := make([][]float64, NumClasses)
	for k := range gradW {
		gradW[k] = make([]float64, d)
	}
	gradB := make([]float64, NumClasses)
	z := make([]float64, NumClasses)
	p := make([]float64, NumClasses)

	lr := m.Params.LearningRate
	for epoch := 0; epoch < m.Params.Epochs; epoch++ {
		if epoch%50 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for k := range gradW {
			clear(gradW[k])
		}
		clear(gradB)

		for i, x := range X {
			m.logits(x, z)
			softmax(z, p)
			for k := 0; k < NumClasses; k++ {
				target := 0.0
				if y[i] == k {
					target = 1
				}
				e := w[i] * (p[k] - target)
				gradB[k] += e
				row := gradW[k]
				for j, v := range x {
					row[j] += e * v
				}
			}
		}

		for k := 0; k < NumClasses; k++ {
			for j := 0; j < d; j++ {
				g := gradW[k][j]/totalWeight + m.Params.L2*m.Weights[k][j]
				m.Weights[k][j] -= lr * g
			}
			m.Bias[k] -= lr * gradB[k] / totalWeight
		}
	}
	return nil
}

func (m *LogisticRegression) logits(x, z []float64) {
	for k := 0; k < NumClasses; k++ {
		s := m.Bias[k]
		for j, v := range x {
			s += m.Weights[k][j] * v
		}
		z[k] = s
	}
}

// PredictProba implements Classifier
func (m *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if len(m.Weights) != NumClasses {
		return nil, ErrNotFitted
	}
	if len(x) != len(m.Weights[0]) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDimension, len(x), len(m.Weights[0]))
	}
	z := make([]float64, NumClasses)
	p := make([]float64, NumClasses)
	m.logits(x, z)
	softmax(z, p)
	return p, nil
}

// FeatureImportance implements Classifier using mean |coefficient|.
func (m *LogisticRegression) FeatureImportance() []float64 {
	if len(m.Weights) == 0 {
		return nil
	}
	scores := make([]float64, len(m.Weights[0]))
	for _, row := range m.Weights {
		for j, v := range row {
			scores[j] += math.Abs(v) / NumClasses
		}
	}
	return normalizeImportance(scores)
}
