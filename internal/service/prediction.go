package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/matchcast/internal/artifact"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/ml"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Ranking heuristic for displayed features. It is magnitude based and makes
// no causal claim.
const (
	contributionScale = 0.1
	contributionClamp = 0.3
	// DefaultTopFeatures is the number of ranked features returned.
	DefaultTopFeatures = 5
	// DefaultBatchConcurrency bounds parallel predictions within a batch.
	DefaultBatchConcurrency = 4
)

// Skip reasons reported by BatchPredict.
const (
	SkipNotFound            = "not_found"
	SkipNotPredictable      = "not_predictable"
	SkipInsufficientHistory = "insufficient_history"
	SkipError               = "error"
)

// ModelSource exposes the artifact currently served.
type ModelSource interface {
	Current() *artifact.Bundle
}

// FeatureProvider returns point-in-time features for a match.
type FeatureProvider interface {
	FeaturesFor(ctx context.Context, m *models.Match) (*models.FeatureVector, error)
}

// Probabilities is a distribution over the three outcomes.
type Probabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// FairOdds are decimal odds implied by the probabilities, without margin.
type FairOdds struct {
	Home decimal.Decimal `json:"home"`
	Draw decimal.Decimal `json:"draw"`
	Away decimal.Decimal `json:"away"`
}

// FeatureContribution is one entry of the displayed feature ranking.
type FeatureContribution struct {
	Name         string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// PredictionResult is returned to callers of Predict.
type PredictionResult struct {
	MatchID       int64                 `json:"match_id"`
	Probabilities Probabilities         `json:"probabilities"`
	FairOdds      FairOdds              `json:"fair_odds"`
	Predicted     string                `json:"predicted_outcome"`
	Confidence    float64               `json:"confidence"`
	TopFeatures   []FeatureContribution `json:"top_features"`
	ModelVersion  string                `json:"model_version"`
	Calibrated    bool                  `json:"calibrated"`
}

// Skip records a match a batch could not predict.
type Skip struct {
	MatchID int64  `json:"match_id"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// BatchResult holds the successful predictions and the skipped matches of a
// batch, both in request order.
type BatchResult struct {
	Predictions []*PredictionResult `json:"predictions"`
	Skipped     []Skip              `json:"skipped"`
}

// PredictionService turns promoted artifacts and point-in-time features
// into stored predictions. It never trains.
type PredictionService struct {
	models      ModelSource
	matches     repository.MatchRepository
	features    FeatureProvider
	predictions repository.PredictionRepository
	topN        int
	batchLimit  int
	concurrency int
	logger      *logrus.Logger
	mlLog       *logger.MLLogger
	audit       *logger.AuditLogger
}

// PredictionOption customizes a PredictionService.
type PredictionOption func(*PredictionService)

// WithTopFeatures sets how many ranked features are returned.
func WithTopFeatures(n int) PredictionOption {
	return func(s *PredictionService) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithBatchLimit rejects batches larger than n.
func WithBatchLimit(n int) PredictionOption {
	return func(s *PredictionService) { s.batchLimit = n }
}

// WithBatchConcurrency sets how many predictions of a batch run at once.
func WithBatchConcurrency(n int) PredictionOption {
	return func(s *PredictionService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewPredictionService creates a prediction service.
func NewPredictionService(
	source ModelSource,
	matches repository.MatchRepository,
	features FeatureProvider,
	predictions repository.PredictionRepository,
	log *logrus.Logger,
	opts ...PredictionOption,
) *PredictionService {
	s := &PredictionService{
		models:      source,
		matches:     matches,
		features:    features,
		predictions: predictions,
		topN:        DefaultTopFeatures,
		concurrency: DefaultBatchConcurrency,
		logger:      log,
		mlLog:       logger.NewMLLogger(log),
		audit:       logger.NewAuditLogger(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict forecasts an unfinished match and upserts the stored prediction.
func (s *PredictionService) Predict(ctx context.Context, matchID int64) (*PredictionResult, error) {
	start := time.Now()

	bundle := s.models.Current()
	if bundle == nil {
		s.fail(matchID, "not_ready")
		return nil, models.ErrServiceNotReady
	}

	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.fail(matchID, "not_found")
			return nil, fmt.Errorf("match %d: %w", matchID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	if m.IsFinished() {
		s.fail(matchID, "not_predictable")
		return nil, fmt.Errorf("match %d is %s: %w", matchID, m.Status, models.ErrNotPredictable)
	}

	fv, err := s.features.FeaturesFor(ctx, m)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.fail(matchID, "insufficient_history")
		return nil, fmt.Errorf("%w: match %d: %w", models.ErrInsufficientHistory, matchID, err)
	}

	if err := models.CheckSchema(bundle.Metadata.Version, bundle.Metadata.FeatureSchema, fv.Names); err != nil {
		s.fail(matchID, "schema_mismatch")
		s.logger.WithError(err).WithField("match_id", matchID).Error("Feature vector does not match artifact schema")
		return nil, err
	}

	scaled, err := bundle.Scaler.TransformRow(fv.Values)
	if err != nil {
		s.fail(matchID, "scaler")
		return nil, err
	}
	probs, err := bundle.Model.PredictProba(scaled)
	if err != nil {
		s.fail(matchID, "model")
		return nil, fmt.Errorf("model %s failed on match %d: %w", bundle.Metadata.Version, matchID, err)
	}
	if len(probs) != ml.NumClasses {
		s.fail(matchID, "model")
		return nil, fmt.Errorf("model %s returned %d probabilities", bundle.Metadata.Version, len(probs))
	}

	prediction := &models.Prediction{
		MatchID:      matchID,
		PAway:        probs[models.OutcomeAway],
		PDraw:        probs[models.OutcomeDraw],
		PHome:        probs[models.OutcomeHome],
		ModelVersion: bundle.Metadata.Version,
		CreatedAt:    time.Now().UTC(),
	}
	if !prediction.IsValid() {
		s.fail(matchID, "invalid_probabilities")
		return nil, fmt.Errorf("model %s produced invalid probabilities %v for match %d", bundle.Metadata.Version, probs, matchID)
	}

	if err := s.predictions.Upsert(ctx, prediction); err != nil {
		s.fail(matchID, "store")
		return nil, fmt.Errorf("failed to store prediction for match %d: %w", matchID, err)
	}
	s.audit.LogPredictionUpserted(matchID, prediction.ModelVersion)

	outcome, confidence := prediction.Predicted()
	elapsed := time.Since(start)
	metrics.RecordPrediction(prediction.ModelVersion, outcome.String(), elapsed.Seconds())
	s.mlLog.LogPrediction(matchID, prediction.ModelVersion, prediction.PHome, prediction.PDraw, prediction.PAway, float64(elapsed.Microseconds())/1000)

	return &PredictionResult{
		MatchID: matchID,
		Probabilities: Probabilities{
			Home: prediction.PHome,
			Draw: prediction.PDraw,
			Away: prediction.PAway,
		},
		FairOdds: FairOdds{
			Home: fairOdds(prediction.PHome),
			Draw: fairOdds(prediction.PDraw),
			Away: fairOdds(prediction.PAway),
		},
		Predicted:    outcome.String(),
		Confidence:   confidence,
		TopFeatures:  TopFeatures(fv, s.topN),
		ModelVersion: prediction.ModelVersion,
		Calibrated:   prediction.Calibrated,
	}, nil
}

// BatchPredict predicts every match. Per-match failures become skips; a
// schema mismatch or a missing artifact aborts the whole batch.
func (s *PredictionService) BatchPredict(ctx context.Context, matchIDs []int64) (*BatchResult, error) {
	if s.batchLimit > 0 && len(matchIDs) > s.batchLimit {
		return nil, fmt.Errorf("batch of %d matches exceeds limit %d", len(matchIDs), s.batchLimit)
	}
	if s.models.Current() == nil {
		return nil, models.ErrServiceNotReady
	}

	results := make([]*PredictionResult, len(matchIDs))
	skips := make([]*Skip, len(matchIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range matchIDs {
		i, id := i, id
		g.Go(func() error {
			res, err := s.Predict(gctx, id)
			if err == nil {
				results[i] = res
				return nil
			}
			if isFatal(err) || gctx.Err() != nil {
				return err
			}
			skips[i] = &Skip{MatchID: id, Reason: skipReason(err), Detail: err.Error()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchResult{Predictions: []*PredictionResult{}, Skipped: []Skip{}}
	for i := range matchIDs {
		switch {
		case results[i] != nil:
			out.Predictions = append(out.Predictions, results[i])
		case skips[i] != nil:
			out.Skipped = append(out.Skipped, *skips[i])
		}
	}

	s.logger.WithFields(logrus.Fields{
		"requested": len(matchIDs),
		"predicted": len(out.Predictions),
		"skipped":   len(out.Skipped),
	}).Info("Batch prediction completed")
	return out, nil
}

func (s *PredictionService) fail(matchID int64, reason string) {
	metrics.RecordPredictionFailure(reason)
	s.mlLog.LogMLPredictionError(matchID, reason)
}

func isFatal(err error) bool {
	return errors.Is(err, models.ErrSchemaMismatch) || errors.Is(err, models.ErrServiceNotReady)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return SkipNotFound
	case errors.Is(err, models.ErrNotPredictable):
		return SkipNotPredictable
	case errors.Is(err, models.ErrInsufficientHistory):
		return SkipInsufficientHistory
	default:
		return SkipError
	}
}

// fairOdds returns 1/p rounded to two places, or zero for p = 0.
func fairOdds(p float64) decimal.Decimal {
	if p <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(decimal.NewFromFloat(p)).Round(2)
}

// TopFeatures ranks features by |value * 0.1| clamped to 0.3. Ties keep
// schema order.
func TopFeatures(fv *models.FeatureVector, n int) []FeatureContribution {
	ranked := make([]FeatureContribution, len(fv.Names))
	for i, name := range fv.Names {
		c := math.Max(-contributionClamp, math.Min(contributionClamp, fv.Values[i]*contributionScale))
		ranked[i] = FeatureContribution{
			Name:         name,
			Value:        fv.Values[i],
			Contribution: math.Round(c*1000) / 1000,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Contribution) > math.Abs(ranked[j].Contribution)
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
