package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePerfectForecast(t *testing.T) {
	probs := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	labels := []int{0, 1, 2}

	m, err := Compute(probs, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.InDelta(t, 0, m.LogLoss, 1e-12)
	assert.Equal(t, 0.0, m.Brier)
	assert.Equal(t, 0.0, m.ECE)
	assert.Equal(t, 1.0, m.MacroAUC)
	assert.Equal(t, 1.0, m.MacroF1)
	assert.Equal(t, 1, m.ConfusionMatrix[2][2])
}

func TestComputeUniformForecast(t *testing.T) {
	third := 1.0 / 3
	probs := [][]float64{{third, third, third}, {third, third, third}, {third, third, third}}
	labels := []int{0, 1, 2}

	m, err := Compute(probs, labels)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(3), m.LogLoss, 1e-9)
	assert.InDelta(t, 2.0/3, m.Brier, 1e-9)
	assert.InDelta(t, 0.5, m.MacroAUC, 1e-9)
	// Ties go to the away class.
	assert.Equal(t, [3]int{1, 0, 0}, m.ConfusionMatrix[0])
	assert.Equal(t, 1, m.PerClass["away"].Support)
}

func TestLogLossIsClamped(t *testing.T) {
	loss := LogLoss([][]float64{{1, 0, 0}}, []int{2})
	assert.InDelta(t, -math.Log(ProbabilityFloor), loss, 1e-9)
	assert.False(t, math.IsInf(loss, 0))
}

func TestBinaryAUC(t *testing.T) {
	auc, ok := BinaryAUC([]float64{0.1, 0.4, 0.35, 0.8}, []bool{false, false, true, true})
	require.True(t, ok)
	assert.InDelta(t, 0.75, auc, 1e-9)

	auc, ok = BinaryAUC([]float64{0.5, 0.5}, []bool{true, false})
	require.True(t, ok)
	assert.InDelta(t, 0.5, auc, 1e-9)

	_, ok = BinaryAUC([]float64{0.2, 0.3}, []bool{true, true})
	assert.False(t, ok)
}

func TestBinaryAUCPartialTiesAndInputOrder(t *testing.T) {
	scores := []float64{0.9, 0.6, 0.6, 0.2}
	positive := []bool{true, true, false, false}

	// 0.9 beats both negatives, 0.6 beats 0.2 and ties 0.6: 3.5 of 4 pairs.
	auc, ok := BinaryAUC(scores, positive)
	require.True(t, ok)
	assert.InDelta(t, 0.875, auc, 1e-9)
	assert.Equal(t, []float64{0.9, 0.6, 0.6, 0.2}, scores)
	assert.Equal(t, []bool{true, true, false, false}, positive)
}

func TestMacroAUCSkipsAbsentClass(t *testing.T) {
	probs := [][]float64{
		{0.7, 0.2, 0.1},
		{0.6, 0.1, 0.3},
		{0.2, 0.3, 0.5},
		{0.1, 0.1, 0.8},
	}
	// No draws: only away and home curves count, both separate perfectly.
	assert.InDelta(t, 1.0, MacroAUC(probs, []int{0, 0, 2, 2}), 1e-9)
	assert.InDelta(t, 0.5, MacroAUC(probs[:1], []int{0}), 1e-9)
}

func TestExpectedCalibrationError(t *testing.T) {
	// Two samples in the 0.8 bin, one right and one wrong: |0.5 - 0.8|.
	probs := [][]float64{{0.1, 0.1, 0.8}, {0.1, 0.1, 0.8}}
	ece := ExpectedCalibrationError(probs, []int{2, 0}, CalibrationBins)
	assert.InDelta(t, 0.3, ece, 1e-9)
}

func TestComputeRejectsMismatchedInput(t *testing.T) {
	_, err := Compute([][]float64{{0.2, 0.3, 0.5}}, []int{1, 2})
	assert.Error(t, err)

	_, err = Compute(nil, nil)
	assert.Error(t, err)

	_, err = Compute([][]float64{{0.5, 0.5}}, []int{1})
	assert.Error(t, err)
}

func TestMetricsMap(t *testing.T) {
	m := Metrics{Accuracy: 0.5, LogLoss: 1.01}
	values := m.Map()
	assert.Equal(t, 0.5, values["accuracy"])
	assert.Equal(t, 1.01, values["log_loss"])
	assert.Contains(t, string(m.ToJSON()), `"confusion_matrix"`)
}
