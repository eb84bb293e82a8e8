package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/models"
)

// PostgresFeatureRepository implements FeatureRepository for PostgreSQL
type PostgresFeatureRepository struct {
	db *database.DB
}

// NewPostgresFeatureRepository creates a new feature repository
func NewPostgresFeatureRepository(db *database.DB) *PostgresFeatureRepository {
	return &PostgresFeatureRepository{db: db}
}

// Get retrieves the stored feature vector of a match
func (r *PostgresFeatureRepository) Get(ctx context.Context, matchID int64) (*models.FeatureVector, error) {
	query := `SELECT match_id, schema_version, feature_json, built_at FROM match_features WHERE match_id = $1`

	fv := &models.FeatureVector{}
	var raw []byte
	err := r.db.GetPool().QueryRow(ctx, query, matchID).Scan(&fv.MatchID, &fv.SchemaVersion, &raw, &fv.BuiltAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get features: %w", err)
	}

	if err := fv.UnmarshalFeatures(raw); err != nil {
		return nil, fmt.Errorf("failed to decode features for match %d: %w", matchID, err)
	}
	return fv, nil
}

// Upsert stores a feature vector, replacing any previous one for the match
func (r *PostgresFeatureRepository) Upsert(ctx context.Context, fv *models.FeatureVector) error {
	raw, err := fv.MarshalFeatures()
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	query := `
		INSERT INTO match_features (match_id, schema_version, feature_json, built_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			feature_json = EXCLUDED.feature_json,
			built_at = EXCLUDED.built_at
	`
	if _, err := r.db.GetPool().Exec(ctx, query, fv.MatchID, fv.SchemaVersion, raw, fv.BuiltAt); err != nil {
		return fmt.Errorf("failed to upsert features: %w", err)
	}
	return nil
}

// Delete removes the stored feature vector of a match
func (r *PostgresFeatureRepository) Delete(ctx context.Context, matchID int64) error {
	if _, err := r.db.GetPool().Exec(ctx, `DELETE FROM match_features WHERE match_id = $1`, matchID); err != nil {
		return fmt.Errorf("failed to delete features: %w", err)
	}
	return nil
}
