package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type snapshotSource interface {
	ListPages(ctx context.Context) ([]Page, error)
	ListBlocks(ctx context.Context, pageID string) ([]Block, error)
	GetResume(ctx context.Context) (json.RawMessage, error)
}

// BuildSnapshot reads every page with its blocks plus the résumé, if any.
func BuildSnapshot(ctx context.Context, src snapshotSource) (SiteSnapshot, error) {
	pages, err := src.ListPages(ctx)
	if err != nil {
		return SiteSnapshot{}, fmt.Errorf("snapshot pages: %w", err)
	}
	snapshot := SiteSnapshot{Pages: make([]PageWithBlocks, 0, len(pages))}
	for _, page := range pages {
		blocks, err := src.ListBlocks(ctx, page.ID)
		if err != nil {
			return SiteSnapshot{}, fmt.Errorf("snapshot blocks of %s: %w", page.ID, err)
		}
		snapshot.Pages = append(snapshot.Pages, PageWithBlocks{Page: page, Blocks: blocks})
	}
	resume, err := src.GetResume(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return SiteSnapshot{}, fmt.Errorf("snapshot resume: %w", err)
	}
	snapshot.Resume = resume
	return snapshot, nil
}

// Seed writes snapshot into an empty or partially filled store. Existing pages
// and an existing résumé are left as they are.
func Seed(ctx context.Context, dst interface {
	InsertPage(ctx context.Context, page Page) error
	InsertBlock(ctx context.Context, block Block) error
	GetPage(ctx context.Context, pageID string) (Page, error)
	GetResume(ctx context.Context) (json.RawMessage, error)
	SaveResume(ctx context.Context, data json.RawMessage) error
}, snapshot SiteSnapshot) (int, error) {
	inserted := 0
	for _, item := range snapshot.Pages {
		if _, err := dst.GetPage(ctx, item.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return inserted, err
		}
		if err := dst.InsertPage(ctx, item.Page); err != nil {
			return inserted, fmt.Errorf("seed page %s: %w", item.ID, err)
		}
		for _, block := range item.Blocks {
			block.PageID = item.ID
			if err := dst.InsertBlock(ctx, block); err != nil {
				return inserted, fmt.Errorf("seed block %s: %w", block.ID, err)
			}
		}
		inserted++
	}
	if len(snapshot.Resume) == 0 {
		return inserted, nil
	}
	if _, err := dst.GetResume(ctx); err == nil {
		return inserted, nil
	} else if !errors.Is(err, ErrNotFound) {
		return inserted, fmt.Errorf("seed resume: %w", err)
	}
	if err := dst.SaveResume(ctx, snapshot.Resume); err != nil {
		return inserted, fmt.Errorf("seed resume: %w", err)
	}
	return inserted, nil
}
