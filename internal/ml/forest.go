package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// ForestParams configures the bagged tree ensemble.
type ForestParams struct {
	Trees          int `json:"trees"`
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
	// MaxFeatures is the number of columns tried per split; 0 means sqrt(d).
	MaxFeatures int `json:"max_features"`
}

// RandomForest averages class distributions of bootstrapped CART trees.
type RandomForest struct {
	Params     ForestParams `json:"params"`
	Seed       int64        `json:"seed"`
	Dim        int          `json:"dim"`
	Trees      []*Node      `json:"trees"`
	Importance []float64    `json:"importance"`
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(p ForestParams, seed int64) *RandomForest {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 8
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	return &RandomForest{Params: p, Seed: seed}
}

// Algorithm implements Classifier
func (f *RandomForest) Algorithm() string {
	return AlgorithmRandomForest
}

// Fit implements Classifier
func (f *RandomForest) Fit(ctx context.Context, X [][]float64, y []int, w []float64) error {
	d, w, err := validateTrainingSet(X, y, w)
	if err != nil {
		return err
	}

	maxFeatures := f.Params.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Round(math.Sqrt(float64(d)))))
	}

	f.Dim = d
	f.Trees = make([]*Node, 0, f.Params.Trees)
	importance := make([]float64, d)
	n := len(X)

	for t := 0; t < f.Params.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewSource(f.Seed + int64(t)))
		bag := make([]int, n)
		for i := range bag {
			bag[i] = rng.Intn(n)
		}
		g := &treeGrower{
			X:              X,
			crit:           giniCriterion{y: y, w: w},
			maxDepth:       f.Params.MaxDepth,
			minSamplesLeaf: f.Params.MinSamplesLeaf,
			maxFeatures:    maxFeatures,
			rng:            rng,
			importance:     importance,
		}
		f.Trees = append(f.Trees, g.grow(bag, 0))
	}
	f.Importance = normalizeImportance(importance)
	return nil
}

// PredictProba implements Classifier
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != f.Dim {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDimension, len(x), f.Dim)
	}
	out := make([]float64, NumClasses)
	for _, tree := range f.Trees {
		for k, v := range tree.Leaf(x).Value {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out, nil
}

// FeatureImportance implements Classifier using summed impurity decrease.
func (f *RandomForest) FeatureImportance() []float64 {
	return append([]float64(nil), f.Importance...)
}
