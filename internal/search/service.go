package search

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to the
// store's own search.
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise the fallback.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back", zap.Error(err))
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPage indexes a page and its text blocks (fire-and-forget to Meilisearch).
func (s *Service) IndexPage(page store.Page, blocks []store.Block) {
	if !s.indexing() {
		return
	}
	pages, records := Records(store.SiteSnapshot{Pages: []store.PageWithBlocks{{Page: page, Blocks: blocks}}})
	go func() {
		if err := s.meili.IndexPages(pages); err != nil {
			s.logger.Warn("index page failed", zap.String("page", page.ID), zap.Error(err))
		}
		if err := s.meili.IndexBlocks(records); err != nil {
			s.logger.Warn("index blocks failed", zap.String("page", page.ID), zap.Error(err))
		}
	}()
}

// DeletePage removes a page and the given blocks from the index (fire-and-forget).
func (s *Service) DeletePage(pageID string, blockIDs []string) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := s.meili.DeletePage(pageID); err != nil {
			s.logger.Warn("delete page from index failed", zap.String("page", pageID), zap.Error(err))
		}
		for _, id := range blockIDs {
			if err := s.meili.DeleteBlock(id); err != nil {
				s.logger.Warn("delete block from index failed", zap.String("block", id), zap.Error(err))
			}
		}
	}()
}

// DeleteBlock removes one block from the index (fire-and-forget).
func (s *Service) DeleteBlock(blockID string) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := s.meili.DeleteBlock(blockID); err != nil {
			s.logger.Warn("delete block from index failed", zap.String("block", blockID), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every page and text block of site to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context, site store.SiteSnapshot) error {
	if s.meili == nil {
		return errors.New("meilisearch is not configured")
	}
	if !s.meili.Healthy() {
		return errors.New("meilisearch is unavailable")
	}
	pages, blocks := Records(site)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error { return s.meili.IndexPages(pages) })
	group.Go(func() error { return s.meili.IndexBlocks(blocks) })
	if err := group.Wait(); err != nil {
		return err
	}
	s.logger.Info("search reindexed", zap.Int("pages", len(pages)), zap.Int("blocks", len(blocks)))
	return nil
}

func (s *Service) indexing() bool {
	return s.meili != nil && s.meili.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
