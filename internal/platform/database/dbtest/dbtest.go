// Package dbtest opens a migrated in-memory store for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"confix/internal/platform/config"
	"confix/internal/platform/database"
	"confix/migrations"
)

func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.NewDB(config.DatabaseConfig{URL: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db, migrations.FS); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}
