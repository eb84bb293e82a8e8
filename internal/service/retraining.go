package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchcast/internal/dataset"
	"github.com/yourusername/matchcast/internal/evaluation"
	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Retraining triggers recorded in logs and metrics.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// EvaluationRequest selects finished predictions for error analysis.
type EvaluationRequest struct {
	Season   *int
	Matchday *int
	// DaysBack keeps matches played within this many days; 0 means no limit.
	DaysBack int
	TopN     int
}

// RetrainingOptions configures one error-driven retraining run.
type RetrainingOptions struct {
	Algorithm  string
	Seasons    []int
	Split      dataset.SplitOptions
	Evaluation EvaluationRequest
	Trigger    string
}

// RetrainingResult is the outcome of a feedback loop iteration.
type RetrainingResult struct {
	*TrainingResult
	Report        evaluation.Report `json:"error_report"`
	Weighting     string            `json:"weighting"`
	ParentVersion string            `json:"parent_version,omitempty"`
	FoldedBack    int               `json:"folded_back"`
	Reweighted    int               `json:"reweighted"`
}

// RetrainingService closes the predict, observe, reweight, retrain loop.
type RetrainingService struct {
	training     *TrainingService
	predictions  repository.PredictionRepository
	weighting    evaluation.WeightingStrategy
	minEvaluated int
	logger       *logrus.Logger
	mlLog        *logger.MLLogger
	audit        *logger.AuditLogger
	now          func() time.Time
}

// NewRetrainingService creates a retraining service on top of training.
func NewRetrainingService(
	training *TrainingService,
	predictions repository.PredictionRepository,
	weighting evaluation.WeightingStrategy,
	minEvaluated int,
	log *logrus.Logger,
) *RetrainingService {
	return &RetrainingService{
		training:     training,
		predictions:  predictions,
		weighting:    weighting,
		minEvaluated: minEvaluated,
		logger:       log,
		mlLog:        logger.NewMLLogger(log),
		audit:        logger.NewAuditLogger(log),
		now:          time.Now,
	}
}

// Evaluate scores stored predictions against final results.
func (s *RetrainingService) Evaluate(ctx context.Context, req EvaluationRequest) (evaluation.Report, error) {
	report, _, err := s.evaluate(ctx, req)
	return report, err
}

func (s *RetrainingService) evaluate(ctx context.Context, req EvaluationRequest) (evaluation.Report, []*models.EvaluatedPrediction, error) {
	filter := repository.EvaluationFilter{Season: req.Season, Matchday: req.Matchday}
	if req.DaysBack > 0 {
		since := s.now().UTC().AddDate(0, 0, -req.DaysBack)
		filter.Since = &since
	}

	records, err := s.predictions.ListEvaluated(ctx, filter)
	if err != nil {
		return evaluation.Report{}, nil, fmt.Errorf("failed to list evaluated predictions: %w", err)
	}

	report, skipped := evaluation.Analyze(records, evaluation.Options{TopN: req.TopN})
	if skipped > 0 {
		s.logger.WithField("skipped", skipped).Warn("Evaluated predictions without usable scores ignored")
	}
	s.mlLog.LogErrorReport(report.Total, report.Accuracy, report.MeanLogLoss)
	metrics.RecordErrorReport(report.Total, report.Accuracy, report.MeanLogLoss)
	return report, records, nil
}

// Retrain folds evaluated matches back into the training table weighted by
// their past error and promotes the resulting artifact. Rows of the
// validation partition are never folded back.
func (s *RetrainingService) Retrain(ctx context.Context, opts RetrainingOptions) (result *RetrainingResult, err error) {
	trigger := opts.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}
	defer func() {
		status := "success"
		switch {
		case errors.Is(err, models.ErrInsufficientHistory):
			status = "skipped"
		case err != nil:
			status = "failure"
		}
		metrics.RecordRetrainingRun(trigger, status)
	}()

	ctx, cancel := s.training.withTimeout(ctx)
	defer cancel()

	report, records, err := s.evaluate(ctx, opts.Evaluation)
	if err != nil {
		return nil, err
	}
	if report.Total < s.minEvaluated {
		return nil, fmt.Errorf("%w: %d evaluated predictions, need %d", models.ErrInsufficientHistory, report.Total, s.minEvaluated)
	}
	s.audit.LogRetrainingTriggered(trigger, report.Total, s.weighting.Name())

	base, buildReport, err := s.training.datasets.Build(ctx, opts.Seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to build base dataset: %w", err)
	}
	train, valid, err := dataset.Split(base, opts.Split)
	if err != nil {
		return nil, err
	}

	evaluated, err := s.evaluatedRows(ctx, report, records, valid)
	if err != nil {
		return nil, err
	}
	added, err := train.Merge(evaluated)
	if err != nil {
		return nil, err
	}
	reweighted := train.ApplyWeights(evaluation.Weights(report, s.weighting))

	parent, err := s.training.store.Current()
	if err != nil && !errors.Is(err, models.ErrArtifactMissing) {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"evaluated":   report.Total,
		"folded_back": added,
		"reweighted":  reweighted,
		"parent":      parent,
	}).Info("Evaluated matches merged into training table")

	trained, err := s.training.run(ctx, trainRun{
		algorithm:     opts.Algorithm,
		seasons:       opts.Seasons,
		split:         opts.Split,
		train:         train,
		valid:         valid,
		weighting:     s.weighting.Name(),
		parentVersion: parent,
	})
	if err != nil {
		return nil, err
	}
	trained.Dataset = buildReport

	return &RetrainingResult{
		TrainingResult: trained,
		Report:         report,
		Weighting:      s.weighting.Name(),
		ParentVersion:  parent,
		FoldedBack:     added,
		Reweighted:     reweighted,
	}, nil
}

// evaluatedRows builds labeled rows for the analyzed matches, excluding any
// match that is part of the validation partition.
func (s *RetrainingService) evaluatedRows(ctx context.Context, report evaluation.Report, records []*models.EvaluatedPrediction, valid *dataset.Dataset) (*dataset.Dataset, error) {
	held := make(map[int64]bool, valid.Len())
	for _, r := range valid.Rows {
		held[r.MatchID] = true
	}

	matches := make([]*models.Match, 0, len(report.Errors))
	for _, rec := range records {
		if _, ok := report.Errors[rec.Match.ID]; ok && !held[rec.Match.ID] {
			matches = append(matches, rec.Match)
		}
	}

	ds, rep, err := s.training.datasets.BuildFromMatches(ctx, matches)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluated rows: %w", err)
	}
	if rep.Skipped > 0 {
		s.logger.WithField("failures", rep.Failures).Warn("Some evaluated matches could not be folded back")
	}
	return ds, nil
}
