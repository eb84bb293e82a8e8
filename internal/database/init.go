package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/matchcast/internal/config"
)

// RequiredTables lists the relations the repositories read and write.
var RequiredTables = []string{"matches", "standings_snapshots", "match_features", "predictions", "model_artifacts"}

// Initialize creates a database connection pool and verifies the schema the
// repositories depend on is present. Migrations are managed outside this service.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	missing, err := db.missingTables(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(missing) > 0 {
		db.Close()
		return nil, fmt.Errorf("database schema incomplete, missing tables: %s", strings.Join(missing, ", "))
	}

	return db, nil
}

func (db *DB) missingTables(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		RequiredTables,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool, len(RequiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, t := range RequiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}
