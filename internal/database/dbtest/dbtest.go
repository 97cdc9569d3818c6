// Package dbtest opens migrated in-memory SQLite stores for tests.
package dbtest

import (
	"context"
	"testing"

	"flight-booking-orchestrator/internal/database"
)

func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.NewDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
