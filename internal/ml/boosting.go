package ml

import (
	"context"
	"fmt"
	"math"
)

// BoostingParams configures softmax gradient boosting.
type BoostingParams struct {
	Rounds         int     `json:"rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// GradientBoosting fits one regression tree per class per round on the
// softmax log-loss gradient, with Newton-step leaf values.
type GradientBoosting struct {
	Params     BoostingParams `json:"params"`
	Seed       int64          `json:"seed"`
	Dim        int            `json:"dim"`
	Init       []float64      `json:"init"`
	Rounds     [][]*Node      `json:"rounds"` // [round][class]
	Importance []float64      `json:"importance"`
}

// NewGradientBoosting creates an unfitted booster.
func NewGradientBoosting(p BoostingParams, seed int64) *GradientBoosting {
	if p.Rounds <= 0 {
		p.Rounds = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	return &GradientBoosting{Params: p, Seed: seed}
}

// Algorithm implements Classifier
func (b *GradientBoosting) Algorithm() string {
	return AlgorithmGradientBoosting
}

// Fit implements Classifier
func (b *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []int, w []float64) error {
	d, w, err := validateTrainingSet(X, y, w)
	if err != nil {
		return err
	}
	n := len(X)
	b.Dim = d

	// Start from log class priors.
	var prior [NumClasses]float64
	var total float64
	for i := range y {
		prior[y[i]] += w[i]
		total += w[i]
	}
	b.Init = make([]float64, NumClasses)
	for k := range b.Init {
		b.Init[k] = math.Log(math.Max(prior[k]/total, 1e-6))
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = append([]float64(nil), b.Init...)
	}

	probs := make([][]float64, n)
	for i := range probs {
		probs[i] = make([]float64, NumClasses)
	}
	residual := make([]float64, n)
	importance := make([]float64, d)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	const factor = float64(NumClasses-1) / NumClasses
	b.Rounds = make([][]*Node, 0, b.Params.Rounds)
	for round := 0; round < b.Params.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range scores {
			softmax(scores[i], probs[i])
		}

		trees := make([]*Node, NumClasses)
		for k := 0; k < NumClasses; k++ {
			for i := range residual {
				target := 0.0
				if y[i] == k {
					target = 1
				}
				residual[i] = target - probs[i][k]
			}
			crit := squaredErrorCriterion{
				target: residual,
				w:      w,
				leafValue: func(idx []int) float64 {
					var num, den float64
					for _, i := range idx {
						r := residual[i]
						num += w[i] * r
						den += w[i] * math.Abs(r) * (1 - math.Abs(r))
					}
					if den < 1e-12 {
						return 0
					}
					return factor * num / den
				},
			}
			g := &treeGrower{
				X:              X,
				crit:           crit,
				maxDepth:       b.Params.MaxDepth,
				minSamplesLeaf: b.Params.MinSamplesLeaf,
				importance:     importance,
			}
			trees[k] = g.grow(all, 0)
		}

		for i, x := range X {
			for k, tree := range trees {
				scores[i][k] += b.Params.LearningRate * tree.Leaf(x).Value[0]
			}
		}
		b.Rounds = append(b.Rounds, trees)
	}
	b.Importance = normalizeImportance(importance)
	return nil
}

// PredictProba implements Classifier
func (b *GradientBoosting) PredictProba(x []float64) ([]float64, error) {
	if len(b.Init) != NumClasses {
		return nil, ErrNotFitted
	}
	if len(x) != b.Dim {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDimension, len(x), b.Dim)
	}
	z := append([]float64(nil), b.Init...)
	for _, trees := range b.Rounds {
		for k, tree := range trees {
			z[k] += b.Params.LearningRate * tree.Leaf(x).Value[0]
		}
	}
	p := make([]float64, NumClasses)
	softmax(z, p)
	return p, nil
}

// FeatureImportance implements Classifier using summed squared-error reduction.
func (b *GradientBoosting) FeatureImportance() []float64 {
	return append([]float64(nil), b.Importance...)
}
