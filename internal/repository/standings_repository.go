package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/models"
)

const standingsColumns = `season, matchday, team_id, position, played_games, points, goals_for, goals_against, goal_diff, snapshot_at`

// PostgresStandingsRepository implements StandingsRepository for PostgreSQL
type PostgresStandingsRepository struct {
	db *database.DB
}

// NewPostgresStandingsRepository creates a new standings repository
func NewPostgresStandingsRepository(db *database.DB) *PostgresStandingsRepository {
	return &PostgresStandingsRepository{db: db}
}

// Get retrieves the snapshot for one (season, matchday, team)
func (r *PostgresStandingsRepository) Get(ctx context.Context, season, matchday int, teamID int64) (*models.StandingsSnapshot, error) {
	query := `SELECT ` + standingsColumns + ` FROM standings_snapshots
		WHERE season = $1 AND matchday = $2 AND team_id = $3`

	return r.queryOne(ctx, query, season, matchday, teamID)
}

// GetFinal retrieves the team's last snapshot of a season
func (r *PostgresStandingsRepository) GetFinal(ctx context.Context, season int, teamID int64) (*models.StandingsSnapshot, error) {
	query := `SELECT ` + standingsColumns + ` FROM standings_snapshots
		WHERE season = $1 AND team_id = $2
		ORDER BY matchday DESC
		LIMIT 1`

	return r.queryOne(ctx, query, season, teamID)
}

func (r *PostgresStandingsRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.StandingsSnapshot, error) {
	s := &models.StandingsSnapshot{}
	err := r.db.GetPool().QueryRow(ctx, query, args...).Scan(
		&s.Season, &s.Matchday, &s.TeamID, &s.Position, &s.PlayedGames, &s.Points,
		&s.GoalsFor, &s.GoalsAgainst, &s.GoalDiff, &s.SnapshotAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get standings snapshot: %w", err)
	}
	return s, nil
}
