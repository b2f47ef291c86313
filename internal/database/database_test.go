package database

import (
	"context"
	"testing"
)

// newTestDB creates an in-memory database with migrations applied.
// The connection is closed when the test completes.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	return db
}
