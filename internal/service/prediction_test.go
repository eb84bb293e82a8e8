package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/features"
	"github.com/yourusername/matchcast/internal/ml"
	"github.com/yourusername/matchcast/internal/models"
)

const upcomingID int64 = 9999

func addUpcoming(h *harness) *models.Match {
	m := &models.Match{
		ID:         upcomingID,
		Season:     2023,
		UTCDate:    seasonStart(2023).AddDate(0, 0, 7*10),
		Matchday:   11,
		Status:     models.StatusTimed,
		HomeTeamID: clubs[0],
		AwayTeamID: clubs[3],
		City:       "London",
	}
	h.store.AddMatches(m)
	return m
}

func newPredictor(h *harness, source ModelSource, opts ...PredictionOption) *PredictionService {
	return NewPredictionService(source, h.store, h.composer, h.store.Predictions(), h.log, opts...)
}

type failingFeatures struct{ err error }

func (f failingFeatures) FeaturesFor(context.Context, *models.Match) (*models.FeatureVector, error) {
	return nil, f.err
}

func TestPredictServiceNotReady(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)

	_, err := newPredictor(h, staticModels{}).Predict(context.Background(), upcomingID)
	assert.ErrorIs(t, err, models.ErrServiceNotReady)
}

func TestPredictNotFound(t *testing.T) {
	h := newHarness(t, 2023)
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	svc := newPredictor(h, staticModels{stubBundle(features.DefaultSchema().Columns(), model)})

	_, err := svc.Predict(context.Background(), 424242)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPredictFinishedMatchNeverInvokesModel(t *testing.T) {
	h := newHarness(t, 2023)
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	svc := newPredictor(h, staticModels{stubBundle(features.DefaultSchema().Columns(), model)})

	_, err := svc.Predict(context.Background(), 2023*1000+1)
	assert.ErrorIs(t, err, models.ErrNotPredictable)
	assert.Zero(t, model.calls.Load())

	_, err = h.store.Predictions().GetByMatchID(context.Background(), 2023*1000+1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPredictReturnsAndStoresForecast(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	bundle := stubBundle(features.DefaultSchema().Columns(), model)
	svc := newPredictor(h, staticModels{bundle}, WithTopFeatures(4))

	res, err := svc.Predict(context.Background(), upcomingID)
	require.NoError(t, err)

	assert.Equal(t, Probabilities{Home: 0.5, Draw: 0.3, Away: 0.2}, res.Probabilities)
	assert.Equal(t, "2", res.FairOdds.Home.String())
	assert.Equal(t, "3.33", res.FairOdds.Draw.String())
	assert.Equal(t, "5", res.FairOdds.Away.String())
	assert.Equal(t, "home", res.Predicted)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, bundle.Metadata.Version, res.ModelVersion)
	assert.False(t, res.Calibrated)

	require.Len(t, res.TopFeatures, 4)
	for i := 1; i < len(res.TopFeatures); i++ {
		assert.GreaterOrEqual(t, abs(res.TopFeatures[i-1].Contribution), abs(res.TopFeatures[i].Contribution))
	}

	stored, err := h.store.Predictions().GetByMatchID(context.Background(), upcomingID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, stored.PHome)
	assert.Equal(t, 0.3, stored.PDraw)
	assert.Equal(t, 0.2, stored.PAway)
	assert.Equal(t, bundle.Metadata.Version, stored.ModelVersion)
	assert.True(t, stored.IsValid())
}

func TestPredictSchemaMismatchIsFatal(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)

	columns := features.DefaultSchema().Columns()
	columns[0], columns[1] = columns[1], columns[0]
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	svc := newPredictor(h, staticModels{stubBundle(columns, model)})

	_, err := svc.Predict(context.Background(), upcomingID)
	var mismatch *models.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 0, mismatch.Index)
	assert.Zero(t, model.calls.Load())

	_, err = svc.BatchPredict(context.Background(), []int64{upcomingID, 2023*1000 + 1})
	assert.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestPredictFeatureFailureIsInsufficientHistory(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	cause := &models.DataIntegrityError{MatchID: 7, Reason: "missing score"}
	svc := NewPredictionService(staticModels{stubBundle(features.DefaultSchema().Columns(), model)},
		h.store, failingFeatures{err: cause}, h.store.Predictions(), h.log)

	_, err := svc.Predict(context.Background(), upcomingID)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.ErrorIs(t, err, models.ErrDataIntegrity)
	assert.Zero(t, model.calls.Load())
}

func TestPredictWithTrainedArtifact(t *testing.T) {
	h := newHarness(t, 2021, 2022, 2023)
	addUpcoming(h)

	_, err := h.training.Train(context.Background(), TrainingOptions{
		Algorithm: ml.AlgorithmGradientBoosting,
		Seasons:   []int{2021, 2022, 2023},
	})
	require.NoError(t, err)

	res, err := newPredictor(h, h.registry).Predict(context.Background(), upcomingID)
	require.NoError(t, err)

	p := res.Probabilities
	for _, v := range []float64{p.Home, p.Draw, p.Away} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, 1.0, p.Home+p.Draw+p.Away, 1e-6)
	assert.Equal(t, h.registry.Version(), res.ModelVersion)
}

func TestBatchPredictReportsSkips(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)
	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	svc := newPredictor(h, staticModels{stubBundle(features.DefaultSchema().Columns(), model)})

	finished := int64(2023*1000 + 1)
	out, err := svc.BatchPredict(context.Background(), []int64{finished, upcomingID, 424242})
	require.NoError(t, err)

	require.Len(t, out.Predictions, 1)
	assert.Equal(t, upcomingID, out.Predictions[0].MatchID)
	require.Len(t, out.Skipped, 2)
	assert.Equal(t, Skip{MatchID: finished, Reason: SkipNotPredictable, Detail: out.Skipped[0].Detail}, out.Skipped[0])
	assert.Equal(t, int64(424242), out.Skipped[1].MatchID)
	assert.Equal(t, SkipNotFound, out.Skipped[1].Reason)
}

func TestBatchPredictNotReadyAndLimit(t *testing.T) {
	h := newHarness(t, 2023)
	addUpcoming(h)

	_, err := newPredictor(h, staticModels{}).BatchPredict(context.Background(), []int64{upcomingID})
	assert.ErrorIs(t, err, models.ErrServiceNotReady)

	model := &stubModel{probs: []float64{0.2, 0.3, 0.5}}
	svc := newPredictor(h, staticModels{stubBundle(features.DefaultSchema().Columns(), model)}, WithBatchLimit(2))
	_, err = svc.BatchPredict(context.Background(), []int64{1, 2, 3})
	assert.Error(t, err)
	assert.Zero(t, model.calls.Load())
}

func TestTopFeaturesClampsAndRanks(t *testing.T) {
	fv := &models.FeatureVector{
		Names:  []string{"a", "b", "c", "d"},
		Values: []float64{1.23456, -10, 0.5, 2.9},
	}

	top := TopFeatures(fv, 3)
	require.Len(t, top, 3)
	assert.Equal(t, FeatureContribution{Name: "b", Value: -10, Contribution: -0.3}, top[0])
	assert.Equal(t, FeatureContribution{Name: "d", Value: 2.9, Contribution: 0.29}, top[1])
	assert.Equal(t, FeatureContribution{Name: "a", Value: 1.23456, Contribution: 0.123}, top[2])

	assert.Len(t, TopFeatures(fv, 0), 4)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
