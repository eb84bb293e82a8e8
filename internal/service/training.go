// Package service wires the feature engine, trainer and artifact store into
// the training, retraining and prediction workflows.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchcast/internal/artifact"
	"github.com/yourusername/matchcast/internal/config"
	"github.com/yourusername/matchcast/internal/dataset"
	"github.com/yourusername/matchcast/internal/evaluation"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/ml"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// DatasetSource builds labeled training tables.
type DatasetSource interface {
	Build(ctx context.Context, seasons []int) (*dataset.Dataset, dataset.BuildReport, error)
	BuildFromMatches(ctx context.Context, matches []*models.Match) (*dataset.Dataset, dataset.BuildReport, error)
}

// TrainingOptions selects what a run trains on.
type TrainingOptions struct {
	Algorithm string
	Seasons   []int
	Split     dataset.SplitOptions
}

// TrainingResult describes a promoted artifact.
type TrainingResult struct {
	Version    string                  `json:"model_version"`
	Metadata   models.ArtifactMetadata `json:"metadata"`
	Dataset    dataset.BuildReport     `json:"dataset"`
	Candidates []ml.CVResult           `json:"candidates,omitempty"`
	Metrics    evaluation.Metrics      `json:"metrics"`
}

// trainRun is a fully prepared fit: the tables are final and only model
// selection, fitting and promotion remain.
type trainRun struct {
	algorithm     string
	seasons       []int
	split         dataset.SplitOptions
	train         *dataset.Dataset
	valid         *dataset.Dataset
	weighting     string
	parentVersion string
}

// TrainingService trains classifiers offline and promotes the result.
type TrainingService struct {
	datasets DatasetSource
	store    *artifact.Store
	catalog  repository.ArtifactRepository
	registry *artifact.Registry
	params   ml.Params
	cvFolds  int
	timeout  time.Duration
	logger   *logrus.Logger
	mlLog    *logger.MLLogger
	audit    *logger.AuditLogger
	now      func() time.Time
}

// TrainingOption customizes a TrainingService.
type TrainingOption func(*TrainingService)

// WithCatalog records promoted artifacts in a durable catalog as well.
func WithCatalog(repo repository.ArtifactRepository) TrainingOption {
	return func(s *TrainingService) { s.catalog = repo }
}

// WithRegistry installs promoted bundles into an in-process registry.
func WithRegistry(reg *artifact.Registry) TrainingOption {
	return func(s *TrainingService) { s.registry = reg }
}

// WithTimeout bounds each training run.
func WithTimeout(d time.Duration) TrainingOption {
	return func(s *TrainingService) { s.timeout = d }
}

// WithClock overrides the time source used for version ids.
func WithClock(now func() time.Time) TrainingOption {
	return func(s *TrainingService) { s.now = now }
}

// NewTrainingService creates a training service.
func NewTrainingService(
	datasets DatasetSource,
	store *artifact.Store,
	params ml.Params,
	cvFolds int,
	log *logrus.Logger,
	opts ...TrainingOption,
) *TrainingService {
	s := &TrainingService{
		datasets: datasets,
		store:    store,
		params:   params,
		cvFolds:  cvFolds,
		logger:   log,
		mlLog:    logger.NewMLLogger(log),
		audit:    logger.NewAuditLogger(log),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParamsFromConfig maps training configuration onto hyper-parameters. Zero
// values fall back to the classifier defaults.
func ParamsFromConfig(cfg config.TrainingConfig) ml.Params {
	p := ml.DefaultParams()
	p.Seed = cfg.RandomSeed
	if cfg.Logistic.LearningRate > 0 {
		p.Logistic.LearningRate = cfg.Logistic.LearningRate
	}
	if cfg.Logistic.Epochs > 0 {
		p.Logistic.Epochs = cfg.Logistic.Epochs
	}
	if cfg.Logistic.L2 > 0 {
		p.Logistic.L2 = cfg.Logistic.L2
	}
	if cfg.Forest.Trees > 0 {
		p.Forest.Trees = cfg.Forest.Trees
	}
	if cfg.Forest.MaxDepth > 0 {
		p.Forest.MaxDepth = cfg.Forest.MaxDepth
	}
	if cfg.Forest.MinSamplesLeaf > 0 {
		p.Forest.MinSamplesLeaf = cfg.Forest.MinSamplesLeaf
	}
	if cfg.Boosting.Rounds > 0 {
		p.Boosting.Rounds = cfg.Boosting.Rounds
	}
	if cfg.Boosting.MaxDepth > 0 {
		p.Boosting.MaxDepth = cfg.Boosting.MaxDepth
	}
	if cfg.Boosting.LearningRate > 0 {
		p.Boosting.LearningRate = cfg.Boosting.LearningRate
	}
	return p
}

// Train builds the dataset for the seasons, fits the requested algorithm
// (or the best candidate for "auto") and promotes the new artifact. It
// returns the new version id.
func (s *TrainingService) Train(ctx context.Context, opts TrainingOptions) (*TrainingResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ds, report, err := s.datasets.Build(ctx, opts.Seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset: %w", err)
	}
	train, valid, err := dataset.Split(ds, opts.Split)
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, trainRun{
		algorithm: opts.Algorithm,
		seasons:   opts.Seasons,
		split:     opts.Split,
		train:     train,
		valid:     valid,
	})
	if err != nil {
		return nil, err
	}
	result.Dataset = report
	return result, nil
}

func (s *TrainingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *TrainingService) run(ctx context.Context, r trainRun) (result *TrainingResult, err error) {
	start := time.Now()
	algorithm := r.algorithm
	if algorithm == "" {
		algorithm = ml.AlgorithmAuto
	}
	defer func() {
		status := "success"
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = "aborted"
		case err != nil:
			status = "failure"
		}
		metrics.RecordTrainingRun(algorithm, status, time.Since(start).Seconds())
	}()

	runID := uuid.New()
	s.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"algorithm":  algorithm,
		"seasons":    r.seasons,
		"train_rows": r.train.Len(),
		"valid_rows": r.valid.Len(),
	}).Info("Starting training run")

	X, y, w := r.train.X(), r.train.Y(), r.train.Weights()

	candidates, err := s.selectAlgorithm(ctx, algorithm, X, y, w)
	if err != nil {
		return nil, err
	}
	chosen := algorithm
	if algorithm == ml.AlgorithmAuto {
		chosen = candidates[0].Algorithm
	}

	scaler, err := ml.FitScaler(X)
	if err != nil {
		return nil, err
	}
	scaledTrain, err := scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	model, err := ml.New(chosen, s.params)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(ctx, scaledTrain, y, w); err != nil {
		return nil, fmt.Errorf("failed to fit %s: %w", chosen, err)
	}

	scaledValid, err := scaler.Transform(r.valid.X())
	if err != nil {
		return nil, err
	}
	probs, err := ml.PredictAll(model, scaledValid)
	if err != nil {
		return nil, err
	}
	heldOut, err := evaluation.Compute(probs, r.valid.Y())
	if err != nil {
		return nil, fmt.Errorf("failed to score validation set: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainedAt := s.now().UTC()
	meta := models.ArtifactMetadata{
		Version:           artifact.NewVersion(chosen, trainedAt),
		RunID:             runID,
		Algorithm:         chosen,
		SchemaVersion:     r.train.SchemaVersion,
		FeatureSchema:     append([]string(nil), r.train.Columns...),
		TrainSeasons:      append([]int(nil), r.seasons...),
		ValidSeason:       r.split.ValidSeason,
		Samples:           r.train.Len(),
		ValidSamples:      r.valid.Len(),
		Weighting:         r.weighting,
		ParentVersion:     r.parentVersion,
		FeatureImportance: importanceMap(r.train.Columns, model.FeatureImportance()),
		CVScores:          cvScores(candidates),
		Metrics:           heldOut.ToJSON(),
		TrainedAt:         trainedAt,
	}
	if r.split.ValidSeason == nil {
		meta.ValidFraction = r.split.ValidFraction
		if meta.ValidFraction <= 0 || meta.ValidFraction >= 1 {
			meta.ValidFraction = dataset.DefaultValidFraction
		}
	}

	bundle := &artifact.Bundle{Metadata: meta, Model: model, Scaler: scaler}
	if err := s.promote(ctx, bundle); err != nil {
		return nil, err
	}

	s.mlLog.LogModelTraining(chosen, time.Since(start).Seconds(), heldOut.Map(), map[string]interface{}{
		"seed":       s.params.Seed,
		"cv_folds":   s.cvFolds,
		"train_rows": r.train.Len(),
		"weighting":  r.weighting,
	})
	metrics.RecordHeldOutMetrics(heldOut.Map())

	return &TrainingResult{
		Version:    meta.Version,
		Metadata:   meta,
		Candidates: candidates,
		Metrics:    heldOut,
	}, nil
}

// selectAlgorithm cross-validates the candidates on the training rows. For
// an explicit algorithm a failed cross-validation is only logged.
func (s *TrainingService) selectAlgorithm(ctx context.Context, algorithm string, X [][]float64, y []int, w []float64) ([]ml.CVResult, error) {
	candidates := []string{algorithm}
	if algorithm == ml.AlgorithmAuto {
		candidates = ml.Candidates
	} else if _, err := ml.New(algorithm, s.params); err != nil {
		return nil, err
	}

	folds, err := dataset.TimeSeriesFolds(len(X), s.cvFolds)
	if err == nil {
		var results []ml.CVResult
		results, err = ml.Select(ctx, candidates, s.params, X, y, w, folds)
		if err == nil {
			for _, r := range results {
				s.mlLog.LogCandidateScore(r.Algorithm, r.AUC, r.LogLoss)
				metrics.RecordCandidateScore(r.Algorithm, r.AUC)
			}
			return results, nil
		}
	}

	if algorithm == ml.AlgorithmAuto || ctx.Err() != nil {
		return nil, fmt.Errorf("failed to cross-validate candidates: %w", err)
	}
	s.logger.WithError(err).WithField("algorithm", algorithm).Warn("Cross-validation skipped")
	return nil, nil
}

// promote writes the bundle, swaps CURRENT and updates the catalog and the
// in-process registry. Nothing is visible until the store swap succeeds.
func (s *TrainingService) promote(ctx context.Context, b *artifact.Bundle) error {
	previous, err := s.store.Current()
	if err != nil && !errors.Is(err, models.ErrArtifactMissing) {
		return err
	}
	if err := s.store.SaveAndPromote(b); err != nil {
		return fmt.Errorf("failed to promote artifact: %w", err)
	}
	s.audit.LogArtifactPromoted(b.Metadata.Version, previous, b.Metadata.Algorithm, b.Metadata.TrainedAt)

	if s.catalog != nil {
		if err := s.catalog.Record(ctx, &b.Metadata); err != nil {
			s.logger.WithError(err).Warn("Failed to record artifact in catalog")
		} else if err := s.catalog.SetCurrent(ctx, b.Metadata.Version); err != nil {
			s.logger.WithError(err).Warn("Failed to mark artifact current in catalog")
		}
	}
	if s.registry != nil {
		s.registry.Set(b)
	}
	return nil
}

func importanceMap(columns []string, scores []float64) map[string]float64 {
	out := make(map[string]float64, len(columns))
	for i, name := range columns {
		if i < len(scores) {
			out[name] = scores[i]
		}
	}
	return out
}

func cvScores(results []ml.CVResult) map[string]float64 {
	if len(results) == 0 {
		return nil
	}
	out := make(map[string]float64, len(results))
	for _, r := range results {
		out[r.Algorithm] = r.AUC
	}
	return out
}
