package service

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchcast/internal/artifact"
	"github.com/yourusername/matchcast/internal/dataset"
	"github.com/yourusername/matchcast/internal/features"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/ml"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Six clubs ordered strongest first.
var clubs = []int64{57, 65, 64, 61, 73, 66}

func quietLogger() *logrus.Logger {
	return logger.New(io.Discard, "error", "test")
}

func seasonStart(season int) time.Time {
	return time.Date(season, 8, 12, 15, 0, 0, 0, time.UTC)
}

// roundRobin returns n-1 rounds of n/2 pairings using the circle method.
func roundRobin(n int) [][][2]int {
	rot := make([]int, n-1)
	for i := range rot {
		rot[i] = i + 1
	}
	rounds := make([][][2]int, 0, n-1)
	for r := 0; r < n-1; r++ {
		pairs := [][2]int{{0, rot[0]}}
		if r%2 == 1 {
			pairs[0] = [2]int{rot[0], 0}
		}
		for k := 1; k < n/2; k++ {
			pairs = append(pairs, [2]int{rot[k], rot[n-1-k]})
		}
		rounds = append(rounds, pairs)
		rot = append(rot[1:len(rot):len(rot)], rot[0])
	}
	return rounds
}

// playSeason stores a double round robin where the stronger club scores
// more, so outcomes are learnable from form.
func playSeason(store *repository.MemoryStore, season int) []*models.Match {
	rounds := roundRobin(len(clubs))
	var out []*models.Match
	id := int64(season) * 1000
	for half := 0; half < 2; half++ {
		for r, pairs := range rounds {
			matchday := half*len(rounds) + r + 1
			for _, p := range pairs {
				home, away := p[0], p[1]
				if half == 1 {
					home, away = away, home
				}
				hs := (len(clubs)-home+1)/2 + 1
				as := (len(clubs) - away) / 2
				id++
				out = append(out, &models.Match{
					ID:         id,
					Season:     season,
					UTCDate:    seasonStart(season).AddDate(0, 0, 7*(matchday-1)),
					Matchday:   matchday,
					Status:     models.StatusFinished,
					HomeTeamID: clubs[home],
					AwayTeamID: clubs[away],
					HomeScore:  models.IntPtr(hs),
					AwayScore:  models.IntPtr(as),
				})
			}
		}
	}
	store.AddMatches(out...)
	return out
}

func fastParams() ml.Params {
	return ml.Params{
		Seed:     7,
		Logistic: ml.LogisticParams{LearningRate: 0.3, Epochs: 80, L2: 0.001},
		Forest:   ml.ForestParams{Trees: 8, MaxDepth: 3, MinSamplesLeaf: 2},
		Boosting: ml.BoostingParams{Rounds: 8, MaxDepth: 2, LearningRate: 0.3, MinSamplesLeaf: 2},
	}
}

type harness struct {
	store    *repository.MemoryStore
	composer *features.Composer
	datasets *dataset.Builder
	artifact *artifact.Store
	registry *artifact.Registry
	training *TrainingService
	log      *logrus.Logger
}

func newHarness(t *testing.T, seasons ...int) *harness {
	t.Helper()
	log := quietLogger()
	store := repository.NewMemoryStore()
	for _, season := range seasons {
		playSeason(store, season)
	}

	featureLog := logger.NewFeatureLogger(log)
	schema := features.DefaultSchema()
	builder := features.NewPointInTimeBuilder(
		schema,
		features.NewFormCalculator(store, featureLog),
		features.NewStandingsResolver(store, featureLog),
		features.NewH2HAggregator(store, nil, features.DefaultH2HLimit, featureLog),
		features.BuilderOptions{},
	)
	composer := features.NewComposer(schema, store, builder, featureLog, features.WithFeatureRepository(store.Features()))
	datasets := dataset.NewBuilder(store, composer, schema.Version, dataset.Options{SkipColdStart: true}, logger.NewMLLogger(log))

	artifacts, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	registry := artifact.NewRegistry(artifacts, log)

	training := NewTrainingService(datasets, artifacts, fastParams(), 3, log,
		WithCatalog(store.Artifacts()),
		WithRegistry(registry),
		WithTimeout(time.Minute),
	)

	return &harness{
		store:    store,
		composer: composer,
		datasets: datasets,
		artifact: artifacts,
		registry: registry,
		training: training,
		log:      log,
	}
}

func seasonPtr(season int) *int {
	return &season
}

// stubModel returns fixed probabilities and counts calls.
type stubModel struct {
	probs []float64
	calls atomic.Int32
}

func (m *stubModel) Algorithm() string { return "stub" }

func (m *stubModel) Fit(context.Context, [][]float64, []int, []float64) error { return nil }

func (m *stubModel) PredictProba([]float64) ([]float64, error) {
	m.calls.Add(1)
	return append([]float64(nil), m.probs...), nil
}

func (m *stubModel) FeatureImportance() []float64 { return nil }

type staticModels struct {
	bundle *artifact.Bundle
}

func (s staticModels) Current() *artifact.Bundle { return s.bundle }

func stubBundle(columns []string, model ml.Classifier) *artifact.Bundle {
	scaler := &ml.StandardScaler{Mean: make([]float64, len(columns)), Std: make([]float64, len(columns))}
	for i := range scaler.Std {
		scaler.Std[i] = 1
	}
	return &artifact.Bundle{
		Metadata: models.ArtifactMetadata{
			Version:       "stub_20240101_000000_deadbeef",
			Algorithm:     "stub",
			SchemaVersion: features.SchemaVersion,
			FeatureSchema: columns,
		},
		Model:  model,
		Scaler: scaler,
	}
}
