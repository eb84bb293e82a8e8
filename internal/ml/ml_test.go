package ml

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/dataset"
)

// synthetic returns rows where column 0 separates the classes and column 1
// is noise.
func synthetic(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		k := i % NumClasses
		X[i] = []float64{float64(k)*3 + rng.NormFloat64()*0.5, rng.NormFloat64()}
		y[i] = k
	}
	return X, y
}

func fastParams() Params {
	return Params{
		Seed:     7,
		Logistic: LogisticParams{LearningRate: 0.5, Epochs: 200, L2: 0.0001},
		Forest:   ForestParams{Trees: 15, MaxDepth: 4, MinSamplesLeaf: 2},
		Boosting: BoostingParams{Rounds: 20, MaxDepth: 2, LearningRate: 0.3, MinSamplesLeaf: 2},
	}
}

func accuracy(t *testing.T, c Classifier, X [][]float64, y []int) float64 {
	t.Helper()
	correct := 0
	for i, x := range X {
		p, err := c.PredictProba(x)
		require.NoError(t, err)
		require.Len(t, p, NumClasses)
		var sum float64
		best := 0
		for k, v := range p {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			sum += v
			if v > p[best] {
				best = k
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		if best == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func TestClassifiersLearnSeparableData(t *testing.T) {
	X, y := synthetic(150, 1)
	testX, testY := synthetic(60, 2)
	scaler, err := FitScaler(X)
	require.NoError(t, err)
	X, err = scaler.Transform(X)
	require.NoError(t, err)
	testX, err = scaler.Transform(testX)
	require.NoError(t, err)

	for _, algo := range Candidates {
		t.Run(algo, func(t *testing.T) {
			c, err := New(algo, fastParams())
			require.NoError(t, err)
			require.NoError(t, c.Fit(context.Background(), X, y, nil))

			assert.Equal(t, algo, c.Algorithm())
			assert.Greater(t, accuracy(t, c, testX, testY), 0.85)

			importance := c.FeatureImportance()
			require.Len(t, importance, 2)
			assert.Greater(t, importance[0], importance[1], "signal column dominates")
		})
	}
}

func TestClassifierCodecRoundTrip(t *testing.T) {
	X, y := synthetic(60, 3)
	for _, algo := range Candidates {
		t.Run(algo, func(t *testing.T) {
			c, err := New(algo, fastParams())
			require.NoError(t, err)
			require.NoError(t, c.Fit(context.Background(), X, y, nil))

			data, err := MarshalClassifier(c)
			require.NoError(t, err)
			restored, err := UnmarshalClassifier(data)
			require.NoError(t, err)
			assert.Equal(t, algo, restored.Algorithm())

			for _, x := range X[:10] {
				want, err := c.PredictProba(x)
				require.NoError(t, err)
				got, err := restored.PredictProba(x)
				require.NoError(t, err)
				assert.InDeltaSlice(t, want, got, 1e-12)
			}
		})
	}

	_, err := UnmarshalClassifier([]byte(`{"algorithm":"svm","model":{}}`))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSampleWeightsShiftPredictions(t *testing.T) {
	X := [][]float64{{0}, {0}, {0}, {0}}
	y := []int{0, 2, 2, 2}

	plain := NewLogisticRegression(LogisticParams{LearningRate: 0.5, Epochs: 300})
	require.NoError(t, plain.Fit(context.Background(), X, y, nil))
	weighted := NewLogisticRegression(LogisticParams{LearningRate: 0.5, Epochs: 300})
	require.NoError(t, weighted.Fit(context.Background(), X, y, []float64{9, 1, 1, 1}))

	p1, _ := plain.PredictProba([]float64{0})
	p2, _ := weighted.PredictProba([]float64{0})
	assert.Greater(t, p2[0], p1[0])
	assert.InDelta(t, 0.25, p1[0], 0.05)
}

func TestClassifierErrors(t *testing.T) {
	for _, algo := range Candidates {
		c, err := New(algo, fastParams())
		require.NoError(t, err)
		_, err = c.PredictProba([]float64{1, 2})
		assert.ErrorIs(t, err, ErrNotFitted, algo)

		assert.ErrorIs(t, c.Fit(context.Background(), nil, nil, nil), ErrEmptyTrainingSet, algo)
		assert.ErrorIs(t, c.Fit(context.Background(), [][]float64{{1}}, []int{3}, nil), ErrInvalidLabel, algo)
		assert.ErrorIs(t, c.Fit(context.Background(), [][]float64{{1}, {1, 2}}, []int{0, 1}, nil), ErrDimension, algo)

		X, y := synthetic(30, 4)
		require.NoError(t, c.Fit(context.Background(), X, y, nil))
		_, err = c.PredictProba([]float64{1})
		assert.ErrorIs(t, err, ErrDimension, algo)
	}

	_, err := New("svm", fastParams())
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestFitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X, y := synthetic(30, 5)
	for _, algo := range Candidates {
		c, _ := New(algo, fastParams())
		assert.ErrorIs(t, c.Fit(ctx, X, y, nil), context.Canceled, algo)
	}
}

func TestScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s, err := FitScaler(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, s.Mean)
	assert.InDelta(t, 2, s.Std[0], 1e-12)
	assert.Equal(t, 1.0, s.Std[1], "constant column keeps unit scale")

	row, err := s.TransformRow([]float64{5, 5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, row, 1e-12)
	assert.Equal(t, []float64{5, 5}, X[2], "input untouched")

	_, err = s.TransformRow([]float64{1})
	assert.ErrorIs(t, err, ErrDimension)

	data, err := MarshalScaler(s)
	require.NoError(t, err)
	restored, err := UnmarshalScaler(data)
	require.NoError(t, err)
	assert.Equal(t, s, restored)

	var empty *StandardScaler
	_, err = empty.TransformRow([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestCrossValidateAndSelect(t *testing.T) {
	X, y := synthetic(120, 6)
	folds, err := dataset.TimeSeriesFolds(len(X), 3)
	require.NoError(t, err)

	results, err := Select(context.Background(), Candidates, fastParams(), X, y, nil, folds)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Len(t, r.FoldAUC, 3)
		assert.Greater(t, r.AUC, 0.8)
		assert.False(t, math.IsNaN(r.LogLoss))
		if i > 0 {
			assert.False(t, r.Better(results[i-1]))
		}
	}
}

func TestCVResultTieBreak(t *testing.T) {
	a := CVResult{AUC: 0.7, LogLoss: 1.0}
	b := CVResult{AUC: 0.7, LogLoss: 0.9}
	c := CVResult{AUC: 0.71, LogLoss: 1.2}

	assert.True(t, b.Better(a))
	assert.True(t, c.Better(b))
	assert.False(t, a.Better(a))
}
