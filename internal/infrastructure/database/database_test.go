package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/database"
	_ "github.com/openav/matrix-gate/migrations"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// The audit table exists and accepts rows.
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, username, client_addr, created_at)
		VALUES ('aud-test', 'login', 'alice', '10.0.0.1', CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("inserting into audit_logs: %v", err)
	}

	// Migrations are idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count < 1 {
		t.Errorf("schema_migrations has %d rows, want at least 1", count)
	}
}
