package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Skip reasons reported in BuildReport.Failures.
const (
	ReasonMissingScore        = "missing_score"
	ReasonDataIntegrity       = "data_integrity"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonFeatureError        = "feature_error"
)

// FeatureSource supplies point-in-time feature vectors.
type FeatureSource interface {
	FeaturesFor(ctx context.Context, m *models.Match) (*models.FeatureVector, error)
	GetFeatureColumns() []string
}

// BuildReport summarizes which matches became rows.
type BuildReport struct {
	Total    int            `json:"total"`
	Built    int            `json:"built"`
	Skipped  int            `json:"skipped"`
	Failures map[string]int `json:"failures"`
}

func (r *BuildReport) skip(reason string) {
	r.Skipped++
	if r.Failures == nil {
		r.Failures = make(map[string]int)
	}
	r.Failures[reason]++
}

// Options controls row filtering.
type Options struct {
	// SkipColdStart drops rows where either team's form fell back to defaults.
	SkipColdStart bool
}

// Builder turns finished matches into a labeled dataset.
type Builder struct {
	matches       repository.MatchRepository
	features      FeatureSource
	schemaVersion string
	opts          Options
	log           *logger.MLLogger
}

// NewBuilder creates a dataset builder.
func NewBuilder(matches repository.MatchRepository, features FeatureSource, schemaVersion string, opts Options, log *logger.MLLogger) *Builder {
	return &Builder{
		matches:       matches,
		features:      features,
		schemaVersion: schemaVersion,
		opts:          opts,
		log:           log,
	}
}

// Build assembles rows for every finished match of the seasons. Per-match
// failures are counted and skipped. A vector whose layout differs from the
// schema aborts the build.
func (b *Builder) Build(ctx context.Context, seasons []int) (*Dataset, BuildReport, error) {
	matches, err := b.matches.GetFinishedBySeasons(ctx, seasons)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("load finished matches for seasons %v: %w", seasons, err)
	}

	ds, report, err := b.BuildFromMatches(ctx, matches)
	if err != nil {
		return nil, report, err
	}

	b.log.LogDatasetBuilt(seasons, report.Total, report.Built, report.Skipped)
	metrics.RecordDatasetSkips(report.Failures)
	return ds, report, nil
}

// BuildFromMatches assembles rows for the given matches.
func (b *Builder) BuildFromMatches(ctx context.Context, matches []*models.Match) (*Dataset, BuildReport, error) {
	columns := b.features.GetFeatureColumns()
	ds := &Dataset{SchemaVersion: b.schemaVersion, Columns: columns}
	report := BuildReport{Total: len(matches), Failures: map[string]int{}}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		label, err := m.Outcome()
		if err != nil {
			report.skip(ReasonMissingScore)
			continue
		}

		fv, err := b.features.FeaturesFor(ctx, m)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, report, ctxErr
			}
			reason := ReasonFeatureError
			switch {
			case errors.Is(err, models.ErrDataIntegrity):
				reason = ReasonDataIntegrity
			case errors.Is(err, models.ErrInsufficientHistory):
				reason = ReasonInsufficientHistory
			}
			b.log.WithError(err).WithField("match_id", m.ID).Debug("Dataset row skipped")
			report.skip(reason)
			continue
		}

		if err := models.CheckSchema(b.schemaVersion, columns, fv.Names); err != nil {
			return nil, report, fmt.Errorf("match %d: %w", m.ID, err)
		}

		if b.opts.SkipColdStart && fv.Quality.ColdStart {
			report.skip(ReasonInsufficientHistory)
			continue
		}

		ds.Rows = append(ds.Rows, Row{
			MatchID:  m.ID,
			Season:   m.Season,
			Date:     m.UTCDate,
			Features: fv.Values,
			Label:    label,
			Weight:   1.0,
		})
		report.Built++
	}

	ds.SortByDate()
	return ds, report, nil
}
