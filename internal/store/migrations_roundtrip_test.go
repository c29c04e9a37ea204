package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("PORTFOLIO_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("PORTFOLIO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	dir := filepath.Join("..", "..", "db", "migrations")

	applied, err := ApplyMigrations(ctx, db, dir)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("no migrations applied on an empty schema")
	}
	again, err := ApplyMigrations(ctx, db, dir)
	if err != nil || len(again) != 0 {
		t.Fatalf("second apply = %v, %v; want nothing pending", again, err)
	}

	reverted, err := RollbackMigrations(ctx, db, dir, len(applied))
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(reverted) != len(applied) || reverted[0] != applied[len(applied)-1] {
		t.Fatalf("reverted = %v, want %v newest first", reverted, applied)
	}

	if _, err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("reapply after rollback: %v", err)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
