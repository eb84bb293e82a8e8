package features

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/matchcast/internal/models"
)

// Builder produces the feature vector for a match.
type Builder interface {
	Build(ctx context.Context, m *models.Match) (*models.FeatureVector, error)
}

// sameCityClusters are cities hosting more than one top-flight club.
var sameCityClusters = map[string]bool{
	"London":     true,
	"Manchester": true,
	"Liverpool":  true,
}

// BuilderOptions tunes the look-back windows.
type BuilderOptions struct {
	FormWindow      int
	RankDeltaWindow int
}

// PointInTimeBuilder assembles a vector using only information available
// strictly before the match kickoff.
type PointInTimeBuilder struct {
	schema    Schema
	form      *FormCalculator
	standings *StandingsResolver
	h2h       *H2HAggregator
	opts      BuilderOptions
	now       func() time.Time
}

// NewPointInTimeBuilder wires the feature sources together.
func NewPointInTimeBuilder(schema Schema, form *FormCalculator, standings *StandingsResolver, h2h *H2HAggregator, opts BuilderOptions) *PointInTimeBuilder {
	if opts.FormWindow <= 0 {
		opts.FormWindow = DefaultFormWindow
	}
	if opts.RankDeltaWindow <= 0 {
		opts.RankDeltaWindow = DefaultRankDeltaWindow
	}
	return &PointInTimeBuilder{
		schema:    schema,
		form:      form,
		standings: standings,
		h2h:       h2h,
		opts:      opts,
		now:       time.Now,
	}
}

// Build computes the vector for m.
func (b *PointInTimeBuilder) Build(ctx context.Context, m *models.Match) (*models.FeatureVector, error) {
	h2h, err := b.h2h.Aggregate(ctx, m.HomeTeamID, m.AwayTeamID, m.Season, m.UTCDate)
	if err != nil {
		return nil, err
	}
	standings, err := b.standings.ForMatch(ctx, m, b.opts.RankDeltaWindow)
	if err != nil {
		return nil, err
	}
	form, err := b.form.ForMatch(ctx, m, b.opts.FormWindow)
	if err != nil {
		return nil, err
	}

	values := make([]NamedValue, 0, b.schema.Len())
	values = append(values, h2h...)
	values = append(values, standings.PreviousSeasonFeatures()...)
	values = append(values, form.Diffs()...)
	values = append(values, standings.Diffs()...)
	values = append(values,
		NamedValue{"home_flag", 1},
		NamedValue{"same_city", boolFloat(sameCityClusters[m.City])},
	)

	fv := &models.FeatureVector{
		MatchID:       m.ID,
		SchemaVersion: b.schema.Version,
		Names:         make([]string, len(values)),
		Values:        make([]float64, len(values)),
		BuiltAt:       b.now().UTC(),
		Quality: models.FeatureQuality{
			HomeFormSamples: form.Home.Samples,
			AwayFormSamples: form.Away.Samples,
			H2HMeetings:     int(h2h[0].Value),
			ColdStart:       form.Home.ColdStart || form.Away.ColdStart,
		},
	}
	for i, v := range values {
		fv.Names[i] = v.Name
		fv.Values[i] = v.Value
	}

	if err := models.CheckSchema(b.schema.Version, b.schema.columns, fv.Names); err != nil {
		return nil, fmt.Errorf("builder produced unexpected layout: %w", err)
	}
	return fv, nil
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
