package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/repository"
)

// Cold start table values.
const (
	DefaultPosition = 10
	DefaultPoints   = 0
	DefaultGoalDiff = 0

	DefaultPrevPosition = 10
	DefaultPrevPoints   = 50
	DefaultPrevGoalDiff = 0
	SeasonLength        = 38

	DefaultRankDeltaWindow = 5
)

// TeamStanding is a team's table position as seen before a matchday.
type TeamStanding struct {
	Position  int  `json:"position"`
	Points    int  `json:"points"`
	GoalDiff  int  `json:"goal_diff"`
	Played    int  `json:"played"`
	ColdStart bool `json:"cold_start"`
}

// StandingsResolver reads league table snapshots without looking past the
// matchday being featurized.
type StandingsResolver struct {
	standings repository.StandingsRepository
	log       *logger.FeatureLogger
}

// NewStandingsResolver creates a resolver over the snapshot store.
func NewStandingsResolver(standings repository.StandingsRepository, log *logger.FeatureLogger) *StandingsResolver {
	return &StandingsResolver{standings: standings, log: log}
}

// Resolve returns the team's standing after matchday-1 of season.
func (r *StandingsResolver) Resolve(ctx context.Context, teamID int64, season, matchday int) (TeamStanding, error) {
	if matchday <= 1 {
		return r.coldStart("standings", teamID, season), nil
	}

	snap, err := r.standings.Get(ctx, season, matchday-1, teamID)
	if errors.Is(err, models.ErrNotFound) {
		return r.coldStart("standings", teamID, season), nil
	}
	if err != nil {
		return TeamStanding{}, fmt.Errorf("load standings for team %d season %d matchday %d: %w", teamID, season, matchday-1, err)
	}

	return TeamStanding{
		Position: snap.Position,
		Points:   snap.Points,
		GoalDiff: snap.GoalDiff,
		Played:   snap.PlayedGames,
	}, nil
}

// RankDelta returns position(md-1-window) - position(md-1). Positive values
// mean the team climbed the table. Missing snapshots yield 0.
func (r *StandingsResolver) RankDelta(ctx context.Context, teamID int64, season, matchday, window int) (float64, error) {
	if window <= 0 {
		window = DefaultRankDeltaWindow
	}
	if matchday <= window {
		return 0, nil
	}

	current, err := r.standings.Get(ctx, season, matchday-1, teamID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load standings for team %d season %d matchday %d: %w", teamID, season, matchday-1, err)
	}

	past, err := r.standings.Get(ctx, season, matchday-1-window, teamID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load standings for team %d season %d matchday %d: %w", teamID, season, matchday-1-window, err)
	}

	return float64(past.Position - current.Position), nil
}

// PreviousSeason returns the team's final standing of season-1. Promoted
// teams and first seasons get mid-table defaults.
func (r *StandingsResolver) PreviousSeason(ctx context.Context, teamID int64, season int) (TeamStanding, error) {
	snap, err := r.standings.GetFinal(ctx, season-1, teamID)
	if errors.Is(err, models.ErrNotFound) {
		r.log.LogColdStart("previous_season", teamID, season, 0)
		metrics.RecordColdStart("previous_season")
		return TeamStanding{
			Position:  DefaultPrevPosition,
			Points:    DefaultPrevPoints,
			GoalDiff:  DefaultPrevGoalDiff,
			Played:    SeasonLength,
			ColdStart: true,
		}, nil
	}
	if err != nil {
		return TeamStanding{}, fmt.Errorf("load final standings for team %d season %d: %w", teamID, season-1, err)
	}

	return TeamStanding{
		Position: snap.Position,
		Points:   snap.Points,
		GoalDiff: snap.GoalDiff,
		Played:   snap.PlayedGames,
	}, nil
}

func (r *StandingsResolver) coldStart(source string, teamID int64, season int) TeamStanding {
	r.log.LogColdStart(source, teamID, season, 0)
	metrics.RecordColdStart(source)
	return TeamStanding{
		Position:  DefaultPosition,
		Points:    DefaultPoints,
		GoalDiff:  DefaultGoalDiff,
		ColdStart: true,
	}
}

// MatchStandings holds both teams' table context for one fixture.
type MatchStandings struct {
	Home          TeamStanding
	Away          TeamStanding
	HomeRankDelta float64
	AwayRankDelta float64
	HomePrevious  TeamStanding
	AwayPrevious  TeamStanding
}

// ForMatch resolves current and previous season standings for both teams.
func (r *StandingsResolver) ForMatch(ctx context.Context, m *models.Match, window int) (MatchStandings, error) {
	var out MatchStandings
	var err error

	if out.Home, err = r.Resolve(ctx, m.HomeTeamID, m.Season, m.Matchday); err != nil {
		return MatchStandings{}, err
	}
	if out.Away, err = r.Resolve(ctx, m.AwayTeamID, m.Season, m.Matchday); err != nil {
		return MatchStandings{}, err
	}
	if out.HomeRankDelta, err = r.RankDelta(ctx, m.HomeTeamID, m.Season, m.Matchday, window); err != nil {
		return MatchStandings{}, err
	}
	if out.AwayRankDelta, err = r.RankDelta(ctx, m.AwayTeamID, m.Season, m.Matchday, window); err != nil {
		return MatchStandings{}, err
	}
	if out.HomePrevious, err = r.PreviousSeason(ctx, m.HomeTeamID, m.Season); err != nil {
		return MatchStandings{}, err
	}
	if out.AwayPrevious, err = r.PreviousSeason(ctx, m.AwayTeamID, m.Season); err != nil {
		return MatchStandings{}, err
	}
	return out, nil
}

// Diffs returns the current-table home-minus-away features.
func (s MatchStandings) Diffs() []NamedValue {
	return []NamedValue{
		{"diff_position", float64(s.Home.Position - s.Away.Position)},
		{"diff_points", float64(s.Home.Points - s.Away.Points)},
		{"diff_goal_diff", float64(s.Home.GoalDiff - s.Away.GoalDiff)},
		{"diff_rank_delta", s.HomeRankDelta - s.AwayRankDelta},
		{"diff_table_strength", quality(s.Home.Position) - quality(s.Away.Position)},
	}
}

// PreviousSeasonFeatures returns the previous-season block in schema order.
func (s MatchStandings) PreviousSeasonFeatures() []NamedValue {
	h, a := s.HomePrevious, s.AwayPrevious
	hppg, appg := perGame(h), perGame(a)
	return []NamedValue{
		{"prev_season_home_position", float64(h.Position)},
		{"prev_season_away_position", float64(a.Position)},
		{"prev_season_home_points", float64(h.Points)},
		{"prev_season_away_points", float64(a.Points)},
		{"prev_season_home_goal_diff", float64(h.GoalDiff)},
		{"prev_season_away_goal_diff", float64(a.GoalDiff)},
		{"prev_season_diff_position", float64(h.Position - a.Position)},
		{"prev_season_diff_points", float64(h.Points - a.Points)},
		{"prev_season_diff_goal_diff", float64(h.GoalDiff - a.GoalDiff)},
		{"prev_season_home_points_per_game", hppg},
		{"prev_season_away_points_per_game", appg},
		{"prev_season_diff_points_per_game", float64(h.Points-a.Points) / SeasonLength},
		{"prev_season_home_quality", quality(h.Position)},
		{"prev_season_away_quality", quality(a.Position)},
		{"prev_season_diff_quality", quality(h.Position) - quality(a.Position)},
	}
}

func quality(position int) float64 {
	if position <= 0 {
		return 0
	}
	return 1 / float64(position)
}

func perGame(s TeamStanding) float64 {
	played := s.Played
	if played <= 0 {
		played = SeasonLength
	}
	return float64(s.Points) / float64(played)
}
