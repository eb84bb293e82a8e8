package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/models"
)

const matchColumns = `id, season, utc_date, matchday, status, COALESCE(stage, ''), home_team_id, away_team_id,
	home_score, away_score, COALESCE(venue, ''), COALESCE(city, '')`

// PostgresMatchRepository implements MatchRepository for PostgreSQL
type PostgresMatchRepository struct {
	db *database.DB
}

// NewPostgresMatchRepository creates a new match repository
func NewPostgresMatchRepository(db *database.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

// GetByID retrieves a match by ID
func (r *PostgresMatchRepository) GetByID(ctx context.Context, id int64) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// GetTeamMatchesBefore retrieves a team's finished matches strictly before a cutoff
func (r *PostgresMatchRepository) GetTeamMatchesBefore(ctx context.Context, teamID int64, season int, before time.Time, limit int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE season = $1
		  AND utc_date < $2
		  AND (home_team_id = $3 OR away_team_id = $3)
		  AND status = 'FINISHED'
		ORDER BY utc_date DESC, id DESC
		LIMIT $4
	`
	return r.queryMatches(ctx, query, season, before, teamID, limitOrAll(limit))
}

// GetHeadToHeadBefore retrieves scored meetings of two teams strictly before a cutoff
func (r *PostgresMatchRepository) GetHeadToHeadBefore(ctx context.Context, teamA, teamB int64, before time.Time, limit int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE utc_date < $1
		  AND ((home_team_id = $2 AND away_team_id = $3) OR (home_team_id = $3 AND away_team_id = $2))
		  AND status = 'FINISHED'
		  AND home_score IS NOT NULL AND away_score IS NOT NULL
		ORDER BY utc_date DESC, id DESC
		LIMIT $4
	`
	return r.queryMatches(ctx, query, before, teamA, teamB, limitOrAll(limit))
}

// GetFinishedBySeasons retrieves every finished match of the given seasons
func (r *PostgresMatchRepository) GetFinishedBySeasons(ctx context.Context, seasons []int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE season = ANY($1) AND status = 'FINISHED'
		ORDER BY utc_date ASC, id ASC
	`
	return r.queryMatches(ctx, query, seasons)
}

func (r *PostgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}

	return matches, rows.Err()
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	m := &models.Match{}
	var status string
	err := row.Scan(
		&m.ID, &m.Season, &m.UTCDate, &m.Matchday, &status, &m.Stage, &m.HomeTeamID, &m.AwayTeamID,
		&m.HomeScore, &m.AwayScore, &m.Venue, &m.City,
	)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	m.UTCDate = m.UTCDate.UTC()
	return m, nil
}

// limitOrAll maps a non-positive limit to NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
