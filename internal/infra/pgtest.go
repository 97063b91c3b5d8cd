package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB connects to RIDEBOOK_TEST_DSN, applies migrations and truncates all tables.
// Tests are skipped when the variable is unset.
func TestDB(t testing.TB) *pgxpool.Pool {
	t.Helper()
	db := OptionalTestDB(t)
	if db == nil {
		t.Skip("RIDEBOOK_TEST_DSN not set; skipping DB-backed tests")
	}
	return db
}

// OptionalTestDB is TestDB without the skip: it returns nil when no DSN is configured.
func OptionalTestDB(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("RIDEBOOK_TEST_DSN")
	if dsn == "" {
		return nil
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	root, err := RepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE billing_records, booking_state_events, bookings, rides"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}
