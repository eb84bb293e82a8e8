package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/models"
)

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) *PostgresPredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Upsert stores the current prediction for a match
func (r *PostgresPredictionRepository) Upsert(ctx context.Context, p *models.Prediction) error {
	query := `
		INSERT INTO predictions (match_id, p_home, p_draw, p_away, model_version, calibrated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id) DO UPDATE SET
			p_home = EXCLUDED.p_home,
			p_draw = EXCLUDED.p_draw,
			p_away = EXCLUDED.p_away,
			model_version = EXCLUDED.model_version,
			calibrated = EXCLUDED.calibrated,
			created_at = EXCLUDED.created_at
	`
	_, err := r.db.GetPool().Exec(ctx, query, p.MatchID, p.PHome, p.PDraw, p.PAway, p.ModelVersion, p.Calibrated, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}
	return nil
}

// GetByMatchID retrieves the current prediction for a match
func (r *PostgresPredictionRepository) GetByMatchID(ctx context.Context, matchID int64) (*models.Prediction, error) {
	query := `SELECT match_id, p_home, p_draw, p_away, model_version, calibrated, created_at
		FROM predictions WHERE match_id = $1`

	p := &models.Prediction{}
	err := r.db.GetPool().QueryRow(ctx, query, matchID).Scan(
		&p.MatchID, &p.PHome, &p.PDraw, &p.PAway, &p.ModelVersion, &p.Calibrated, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// ListEvaluated retrieves finished matches joined with their stored predictions
func (r *PostgresPredictionRepository) ListEvaluated(ctx context.Context, filter EvaluationFilter) ([]*models.EvaluatedPrediction, error) {
	conditions := []string{
		"m.status = 'FINISHED'",
		"m.home_score IS NOT NULL",
		"m.away_score IS NOT NULL",
	}
	var args []interface{}
	if filter.Season != nil {
		args = append(args, *filter.Season)
		conditions = append(conditions, fmt.Sprintf("m.season = $%d", len(args)))
	}
	if filter.Matchday != nil {
		args = append(args, *filter.Matchday)
		conditions = append(conditions, fmt.Sprintf("m.matchday = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("m.utc_date >= $%d", len(args)))
	}

	query := `
		SELECT m.id, m.season, m.utc_date, m.matchday, m.status, COALESCE(m.stage, ''), m.home_team_id, m.away_team_id,
		       m.home_score, m.away_score, COALESCE(m.venue, ''), COALESCE(m.city, ''),
		       p.p_home, p.p_draw, p.p_away, p.model_version, p.calibrated, p.created_at
		FROM matches m
		JOIN predictions p ON p.match_id = m.id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY m.utc_date ASC, m.id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluated predictions: %w", err)
	}
	defer rows.Close()

	var out []*models.EvaluatedPrediction
	for rows.Next() {
		m := &models.Match{}
		p := &models.Prediction{}
		var status string
		err := rows.Scan(
			&m.ID, &m.Season, &m.UTCDate, &m.Matchday, &status, &m.Stage, &m.HomeTeamID, &m.AwayTeamID,
			&m.HomeScore, &m.AwayScore, &m.Venue, &m.City,
			&p.PHome, &p.PDraw, &p.PAway, &p.ModelVersion, &p.Calibrated, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluated prediction: %w", err)
		}
		m.Status = models.MatchStatus(status)
		p.MatchID = m.ID
		out = append(out, &models.EvaluatedPrediction{Match: m, Prediction: p})
	}

	return out, rows.Err()
}
