package features

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Neutral form values used when a team has too little prior history.
const (
	DefaultFormPPG          = 1.0
	DefaultFormGoalsFor     = 1.0
	DefaultFormGoalsAgainst = 1.0
	DefaultFormGoalDiff     = 0.0
	DefaultRestDays         = 7.0
	DefaultFormWindow       = 5
)

// TeamForm summarizes a team's recent results as of a date.
type TeamForm struct {
	PPG                  float64 `json:"form_ppg"`
	GoalsForPerMatch     float64 `json:"goals_for_per_match"`
	GoalsAgainstPerMatch float64 `json:"goals_against_per_match"`
	GoalDiffPerMatch     float64 `json:"goal_diff_per_match"`
	RestDays             float64 `json:"rest_days"`
	// Samples is the number of usable prior matches found, before windowing.
	Samples   int  `json:"matches_available"`
	ColdStart bool `json:"cold_start"`
}

// DefaultTeamForm returns the neutral form with a sample-count marker.
func DefaultTeamForm(samples int) TeamForm {
	return TeamForm{
		PPG:                  DefaultFormPPG,
		GoalsForPerMatch:     DefaultFormGoalsFor,
		GoalsAgainstPerMatch: DefaultFormGoalsAgainst,
		GoalDiffPerMatch:     DefaultFormGoalDiff,
		RestDays:             DefaultRestDays,
		Samples:              samples,
		ColdStart:            true,
	}
}

type formEntry struct {
	date     time.Time
	points   float64
	scored   float64
	conceded float64
}

// FormCalculator computes rolling per-team form from match history.
type FormCalculator struct {
	matches repository.MatchRepository
	log     *logger.FeatureLogger
}

// NewFormCalculator creates a form calculator over the match history.
func NewFormCalculator(matches repository.MatchRepository, log *logger.FeatureLogger) *FormCalculator {
	return &FormCalculator{matches: matches, log: log}
}

// Form returns the team's form in season from finished matches strictly
// before asOf. The most recent prior entry is excluded from the averaged
// window, which then covers up to window entries before it. Rest days is the
// gap between the two most recent prior matches.
func (c *FormCalculator) Form(ctx context.Context, teamID int64, season int, asOf time.Time, window int) (TeamForm, error) {
	if window <= 0 {
		window = DefaultFormWindow
	}

	// Bounded scan: window entries plus the excluded one, with headroom for
	// records skipped for missing scores.
	history, err := c.matches.GetTeamMatchesBefore(ctx, teamID, season, asOf, 2*(window+1))
	if err != nil {
		return TeamForm{}, fmt.Errorf("load form history for team %d: %w", teamID, err)
	}

	entries := make([]formEntry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		scored, conceded, err := m.GoalsFor(teamID)
		if err != nil {
			c.log.LogSkippedRecord(m.ID, err.Error())
			continue
		}
		entries = append(entries, formEntry{
			date:     m.UTCDate,
			points:   points(scored, conceded),
			scored:   float64(scored),
			conceded: float64(conceded),
		})
	}

	n := len(entries)
	if n <= 1 {
		c.log.LogColdStart("form", teamID, season, n)
		metrics.RecordColdStart("form")
		return DefaultTeamForm(n), nil
	}

	last := n - 1
	start := last - window
	if start < 0 {
		start = 0
	}
	span := entries[start:last]

	var pts, gf, ga float64
	for _, e := range span {
		pts += e.points
		gf += e.scored
		ga += e.conceded
	}
	k := float64(len(span))

	return TeamForm{
		PPG:                  pts / k,
		GoalsForPerMatch:     gf / k,
		GoalsAgainstPerMatch: ga / k,
		GoalDiffPerMatch:     (gf - ga) / k,
		RestDays:             entries[last].date.Sub(entries[last-1].date).Hours() / 24,
		Samples:              n,
	}, nil
}

func points(scored, conceded int) float64 {
	switch {
	case scored > conceded:
		return 3
	case scored == conceded:
		return 1
	default:
		return 0
	}
}

// MatchForm holds both teams' form for one fixture.
type MatchForm struct {
	Home TeamForm
	Away TeamForm
}

// ForMatch computes home and away form as of the match kickoff.
func (c *FormCalculator) ForMatch(ctx context.Context, m *models.Match, window int) (MatchForm, error) {
	home, err := c.Form(ctx, m.HomeTeamID, m.Season, m.UTCDate, window)
	if err != nil {
		return MatchForm{}, err
	}
	away, err := c.Form(ctx, m.AwayTeamID, m.Season, m.UTCDate, window)
	if err != nil {
		return MatchForm{}, err
	}
	return MatchForm{Home: home, Away: away}, nil
}

// Diffs returns home-minus-away form features in schema order.
func (f MatchForm) Diffs() []NamedValue {
	return []NamedValue{
		{"diff_form_ppg", f.Home.PPG - f.Away.PPG},
		{"diff_goals_for_per_match", f.Home.GoalsForPerMatch - f.Away.GoalsForPerMatch},
		{"diff_goals_against_per_match", f.Home.GoalsAgainstPerMatch - f.Away.GoalsAgainstPerMatch},
		{"diff_goal_diff_per_match", f.Home.GoalDiffPerMatch - f.Away.GoalDiffPerMatch},
		{"diff_rest_days", f.Home.RestDays - f.Away.RestDays},
	}
}
