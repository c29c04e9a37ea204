package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openIntegrationStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("PORTFOLIO_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("PORTFOLIO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func TestPostgresCommitRollsBackOnMissingRow(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	if err := s.InsertPage(ctx, Page{ID: "about", Layout: LayoutSingle, Order: Float(0)}); err != nil {
		t.Fatalf("insert page: %v", err)
	}
	if err := s.InsertBlock(ctx, Block{ID: "a", PageID: "about", Type: BlockText, Order: 1}); err != nil {
		t.Fatalf("insert block: %v", err)
	}

	err := s.Commit(ctx, NewBatch().
		DeleteBlock("about", "a").
		DeleteBlock("about", "missing").
		DeletePage("about"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	blocks, err := s.ListBlocks(ctx, "about")
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected the block to survive a failed batch, got %d blocks", len(blocks))
	}
}

func TestPostgresPageRoundTripKeepsNullableFields(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	if err := s.InsertPage(ctx, Page{ID: "legacy", Layout: LayoutThreeColumn}); err != nil {
		t.Fatalf("insert page: %v", err)
	}
	page, err := s.GetPage(ctx, "legacy")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if page.Order != nil || page.ColumnWidths != nil {
		t.Fatalf("expected nil order and widths, got %+v", page)
	}

	if err := s.SetColumnWidths(ctx, "legacy", []float64{50, 25, 25}); err != nil {
		t.Fatalf("set widths: %v", err)
	}
	if err := s.Commit(ctx, NewBatch().SetPageOrder("legacy", 3)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	page, err = s.GetPage(ctx, "legacy")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if page.Order == nil || *page.Order != 3 || len(page.ColumnWidths) != 3 {
		t.Fatalf("unexpected page after update: %+v", page)
	}
}

func TestPostgresDeletePageCascadesBlocks(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	if err := s.InsertPage(ctx, Page{ID: "gone", Layout: LayoutSingle}); err != nil {
		t.Fatalf("insert page: %v", err)
	}
	if err := s.InsertBlock(ctx, Block{ID: "g1", PageID: "gone", Type: BlockSpacer, Height: 20}); err != nil {
		t.Fatalf("insert block: %v", err)
	}
	if err := s.Commit(ctx, NewBatch().DeleteBlock("gone", "g1").DeletePage("gone")); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var remaining int
	if err := s.DB().QueryRowContext(ctx, `SELECT count(*) FROM blocks WHERE page_id='gone'`).Scan(&remaining); err != nil && !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("count blocks: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected no blocks left, got %d", remaining)
	}
}
