package repository

import (
	"fmt"

	"github.com/yourusername/matchcast/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Match      MatchRepository
	Standings  StandingsRepository
	Feature    FeatureRepository
	Prediction PredictionRepository
	Artifact   ArtifactRepository
}

// NewRepositories creates and returns all PostgreSQL repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Match:      NewPostgresMatchRepository(db),
		Standings:  NewPostgresStandingsRepository(db),
		Feature:    NewPostgresFeatureRepository(db),
		Prediction: NewPostgresPredictionRepository(db),
		Artifact:   NewPostgresArtifactRepository(db),
	}, nil
}

// NewMemoryRepositories wires every repository to one in-memory store
func NewMemoryRepositories(store *MemoryStore) *Repositories {
	return &Repositories{
		Match:      store,
		Standings:  store,
		Feature:    store.Features(),
		Prediction: store.Predictions(),
		Artifact:   store.Artifacts(),
	}
}

var (
	_ MatchRepository      = (*PostgresMatchRepository)(nil)
	_ StandingsRepository  = (*PostgresStandingsRepository)(nil)
	_ FeatureRepository    = (*PostgresFeatureRepository)(nil)
	_ PredictionRepository = (*PostgresPredictionRepository)(nil)
	_ ArtifactRepository   = (*PostgresArtifactRepository)(nil)

	_ MatchRepository      = (*MemoryStore)(nil)
	_ StandingsRepository  = (*MemoryStore)(nil)
	_ FeatureRepository    = (*MemoryFeatureStore)(nil)
	_ PredictionRepository = (*MemoryPredictionStore)(nil)
	_ ArtifactRepository   = (*MemoryArtifactStore)(nil)
)
