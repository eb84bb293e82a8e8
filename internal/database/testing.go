package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the environment variable holding the integration database DSN.
const TestDSNEnv = "TEST_DATABASE_URL"

// SetupTestDB connects to the integration database, skipping the test when
// TEST_DATABASE_URL is not set.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping integration test", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDBFromDSN(ctx, dsn, PoolOptions{MaxConns: 4, StatementTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	missing, err := db.missingTables(ctx)
	if err != nil {
		t.Fatalf("failed to inspect test database: %v", err)
	}
	if len(missing) > 0 {
		db.Close()
		t.Skipf("test database missing tables %v; run migrations first", missing)
	}

	return db
}

// TeardownTestDB closes the database connection cleanly
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()
	db.Close()
}
