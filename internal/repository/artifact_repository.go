package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchcast/internal/database"
	"github.com/yourusername/matchcast/internal/models"
)

// PostgresArtifactRepository implements ArtifactRepository for PostgreSQL.
// The artifact files stay on disk; this table is the queryable catalog.
type PostgresArtifactRepository struct {
	db *database.DB
}

// NewPostgresArtifactRepository creates a new artifact catalog repository
func NewPostgresArtifactRepository(db *database.DB) *PostgresArtifactRepository {
	return &PostgresArtifactRepository{db: db}
}

// Record inserts the metadata of a newly saved artifact
func (r *PostgresArtifactRepository) Record(ctx context.Context, meta *models.ArtifactMetadata) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode artifact metadata: %w", err)
	}

	query := `
		INSERT INTO model_artifacts (version, run_id, algorithm, schema_version, metadata, trained_at, current)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		ON CONFLICT (version) DO NOTHING
	`
	_, err = r.db.GetPool().Exec(ctx, query, meta.Version, meta.RunID, meta.Algorithm, meta.SchemaVersion, doc, meta.TrainedAt)
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

// SetCurrent marks one version current and clears the flag on all others
func (r *PostgresArtifactRepository) SetCurrent(ctx context.Context, version string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE model_artifacts SET current = true WHERE version = $1", version)
		if err != nil {
			return fmt.Errorf("failed to mark artifact current: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		if _, err := tx.Exec(ctx, "UPDATE model_artifacts SET current = false WHERE version != $1 AND current", version); err != nil {
			return fmt.Errorf("failed to clear previous current artifact: %w", err)
		}
		return nil
	})
}

// GetCurrent retrieves the metadata of the current artifact
func (r *PostgresArtifactRepository) GetCurrent(ctx context.Context) (*models.ArtifactMetadata, error) {
	var doc []byte
	err := r.db.GetPool().QueryRow(ctx, `SELECT metadata FROM model_artifacts WHERE current LIMIT 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current artifact: %w", err)
	}

	meta := &models.ArtifactMetadata{}
	if err := json.Unmarshal(doc, meta); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
	}
	return meta, nil
}

// List retrieves the most recently trained artifacts
func (r *PostgresArtifactRepository) List(ctx context.Context, limit int) ([]*models.ArtifactMetadata, error) {
	rows, err := r.db.GetPool().Query(ctx, `SELECT metadata FROM model_artifacts ORDER BY trained_at DESC LIMIT $1`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.ArtifactMetadata
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		meta := &models.ArtifactMetadata{}
		if err := json.Unmarshal(doc, meta); err != nil {
			return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}
