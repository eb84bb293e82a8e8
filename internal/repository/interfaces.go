package repository

import (
	"context"
	"time"

	"github.com/yourusername/matchcast/internal/models"
)

// MatchRepository provides read-only access to match history. Every "before"
// query is strict: a match dated exactly at the cutoff is excluded.
type MatchRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Match, error)
	// GetTeamMatchesBefore returns the team's finished matches in the season
	// dated strictly before the cutoff, newest first. limit <= 0 means unbounded.
	GetTeamMatchesBefore(ctx context.Context, teamID int64, season int, before time.Time, limit int) ([]*models.Match, error)
	// GetHeadToHeadBefore returns finished, scored meetings between the two
	// teams at either venue dated strictly before the cutoff, newest first.
	// Unscored meetings never count against limit.
	GetHeadToHeadBefore(ctx context.Context, teamA, teamB int64, before time.Time, limit int) ([]*models.Match, error)
	// GetFinishedBySeasons returns finished matches of the seasons, oldest first.
	GetFinishedBySeasons(ctx context.Context, seasons []int) ([]*models.Match, error)
}

// StandingsRepository provides read-only access to league table snapshots
type StandingsRepository interface {
	Get(ctx context.Context, season, matchday int, teamID int64) (*models.StandingsSnapshot, error)
	// GetFinal returns the team's snapshot with the highest matchday of the season.
	GetFinal(ctx context.Context, season int, teamID int64) (*models.StandingsSnapshot, error)
}

// FeatureRepository persists built feature vectors keyed by match id
type FeatureRepository interface {
	Get(ctx context.Context, matchID int64) (*models.FeatureVector, error)
	Upsert(ctx context.Context, fv *models.FeatureVector) error
	Delete(ctx context.Context, matchID int64) error
}

// EvaluationFilter narrows the finished matches used for error analysis
type EvaluationFilter struct {
	Season   *int
	Matchday *int
	Since    *time.Time
}

// PredictionRepository stores the current prediction per match
type PredictionRepository interface {
	Upsert(ctx context.Context, prediction *models.Prediction) error
	GetByMatchID(ctx context.Context, matchID int64) (*models.Prediction, error)
	// ListEvaluated returns finished, scored matches that have a stored prediction.
	ListEvaluated(ctx context.Context, filter EvaluationFilter) ([]*models.EvaluatedPrediction, error)
}

// ArtifactRepository keeps a durable catalog of trained artifact versions
type ArtifactRepository interface {
	Record(ctx context.Context, meta *models.ArtifactMetadata) error
	SetCurrent(ctx context.Context, version string) error
	GetCurrent(ctx context.Context) (*models.ArtifactMetadata, error)
	List(ctx context.Context, limit int) ([]*models.ArtifactMetadata, error)
}
