// Package ordering keeps pages and blocks in a stable visitor-visible order
// using pairwise swaps and append-at-end writes.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portfolio/api/internal/layout"
	"portfolio/api/internal/store"
)

var (
	ErrOrderingUndetermined = errors.New("page order cannot be determined")
	ErrNotMultiColumn       = errors.New("page layout is not multi-column")
	ErrInvalidLayout        = errors.New("unknown layout")
	ErrInvalidDirection     = errors.New("invalid move direction")
	ErrInvalidBlockType     = errors.New("unknown block type")
	ErrInvalidColumn        = errors.New("column out of range")
)

const (
	DefaultPageTitle   = "New Page Section"
	HeaderPageTitle    = "Header Section"
	DefaultTextContent = "New text block"
	DefaultSpacerSize  = 64
)

// Store is the persistence the ordering service needs. Commit must apply a
// batch all-or-nothing.
type Store interface {
	ListPages(ctx context.Context) ([]store.Page, error)
	GetPage(ctx context.Context, pageID string) (store.Page, error)
	InsertPage(ctx context.Context, page store.Page) error
	SetColumnWidths(ctx context.Context, pageID string, widths []float64) error
	ListBlocks(ctx context.Context, pageID string) ([]store.Block, error)
	GetBlock(ctx context.Context, pageID, blockID string) (store.Block, error)
	InsertBlock(ctx context.Context, block store.Block) error
	UpdateBlock(ctx context.Context, pageID, blockID string, patch store.BlockPatch) error
	Commit(ctx context.Context, batch *store.Batch) error
}

type Service struct {
	store Store
	newID func() string
}

func New(s Store, newID func() string) *Service {
	return &Service{store: s, newID: newID}
}

// SwapBlockOrder exchanges the order values of two blocks of the same page in
// one batch. Callers pass true neighbors; adjacency is not checked.
func (s *Service) SwapBlockOrder(ctx context.Context, pageID, blockA, blockB string) error {
	a, err := s.store.GetBlock(ctx, pageID, blockA)
	if err != nil {
		return err
	}
	b, err := s.store.GetBlock(ctx, pageID, blockB)
	if err != nil {
		return err
	}
	batch := store.NewBatch().
		SetBlockOrder(pageID, a.ID, b.Order).
		SetBlockOrder(pageID, b.ID, a.Order)
	if err := s.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("swap block order: %w", err)
	}
	return nil
}

// SwapPageOrder exchanges the effective orders of two pages. Pages without a
// stored order use their creation index; if either side has neither, nothing
// is written.
func (s *Service) SwapPageOrder(ctx context.Context, pageA, pageB string) error {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	for _, id := range []string{pageA, pageB} {
		if !containsPage(pages, id) {
			return fmt.Errorf("page %s: %w", id, store.ErrNotFound)
		}
	}
	orders := layout.ResolvePageOrders(pages)
	orderA, okA := orders[pageA]
	orderB, okB := orders[pageB]
	if !okA || !okB {
		return ErrOrderingUndetermined
	}
	batch := store.NewBatch().
		SetPageOrder(pageA, orderB).
		SetPageOrder(pageB, orderA)
	if err := s.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("swap page order: %w", err)
	}
	return nil
}

// MoveBlockColumn shifts a block one column left or right and places it last
// on the page. It returns the block as stored afterwards.
func (s *Service) MoveBlockColumn(ctx context.Context, pageID, blockID string, dir layout.Direction) (store.Block, error) {
	if !dir.Horizontal() {
		return store.Block{}, ErrInvalidDirection
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Block{}, err
	}
	if !layout.IsMultiColumn(page.Layout) {
		return store.Block{}, ErrNotMultiColumn
	}
	blocks, err := s.store.ListBlocks(ctx, pageID)
	if err != nil {
		return store.Block{}, fmt.Errorf("list blocks: %w", err)
	}
	block, ok := findBlock(blocks, blockID)
	if !ok {
		return store.Block{}, fmt.Errorf("block %s/%s: %w", pageID, blockID, store.ErrNotFound)
	}

	n := layout.ColumnCount(page.Layout)
	current := layout.ColumnOf(block, n)
	target := current + 1
	if dir == layout.Left {
		target = current - 1
	}
	target = clamp(target, 1, n)
	if block.Column != nil && *block.Column == target {
		return block, nil
	}
	if block.Column == nil && target == 1 {
		return block, nil
	}

	order := maxOrder(blocks) + 1
	if err := s.store.Commit(ctx, store.NewBatch().SetBlockPlacement(pageID, blockID, target, order)); err != nil {
		return store.Block{}, fmt.Errorf("move block column: %w", err)
	}
	block.Column = store.Int(target)
	block.Order = order
	return block, nil
}

// BlockTemplate is the payload of a new block.
type BlockTemplate struct {
	Type      store.BlockType
	Content   string
	Height    int
	ClassName string
}

// DefaultTemplate returns the starter payload for a block type.
func DefaultTemplate(kind store.BlockType) (BlockTemplate, error) {
	switch kind {
	case store.BlockText:
		return BlockTemplate{Type: kind, Content: DefaultTextContent}, nil
	case store.BlockSpacer:
		return BlockTemplate{Type: kind, Height: DefaultSpacerSize}, nil
	}
	return BlockTemplate{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, kind)
}

// AppendBlock writes a new block after every existing one, in column when it is
// given and the whole page otherwise.
func (s *Service) AppendBlock(ctx context.Context, pageID string, tmpl BlockTemplate, column *int) (store.Block, error) {
	if tmpl.Type != store.BlockText && tmpl.Type != store.BlockSpacer {
		return store.Block{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, tmpl.Type)
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Block{}, err
	}
	if column != nil {
		if n := layout.ColumnCount(page.Layout); *column < 1 || *column > n {
			return store.Block{}, fmt.Errorf("%w: %d of %d", ErrInvalidColumn, *column, n)
		}
	}
	blocks, err := s.store.ListBlocks(ctx, pageID)
	if err != nil {
		return store.Block{}, fmt.Errorf("list blocks: %w", err)
	}
	scope := blocks
	if column != nil {
		n := layout.ColumnCount(page.Layout)
		scope = scope[:0:0]
		for _, block := range blocks {
			if layout.ColumnOf(block, n) == *column {
				scope = append(scope, block)
			}
		}
	}

	block := store.Block{
		ID:        s.newID(),
		PageID:    pageID,
		Type:      tmpl.Type,
		Order:     maxOrder(scope) + 1,
		ClassName: tmpl.ClassName,
		Content:   tmpl.Content,
		Height:    tmpl.Height,
	}
	if column != nil {
		block.Column = store.Int(*column)
	}
	if err := s.store.InsertBlock(ctx, block); err != nil {
		return store.Block{}, fmt.Errorf("append block: %w", err)
	}
	return block, nil
}

// AppendPage creates a single-layout page ordered after every existing page.
func (s *Service) AppendPage(ctx context.Context, title string) (store.Page, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return store.Page{}, fmt.Errorf("list pages: %w", err)
	}
	order := float64(len(pages))
	found := false
	for _, page := range pages {
		if page.Order == nil {
			continue
		}
		if !found || *page.Order+1 > order {
			order = *page.Order + 1
			found = true
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultPageTitle
	}
	page := store.Page{
		ID:     s.newID(),
		Title:  title,
		Layout: store.LayoutSingle,
		Order:  store.Float(order),
	}
	if err := s.store.InsertPage(ctx, page); err != nil {
		return store.Page{}, fmt.Errorf("append page: %w", err)
	}
	return page, nil
}

// EnsureHeaderPage creates the header page when it is missing.
func (s *Service) EnsureHeaderPage(ctx context.Context) (store.Page, error) {
	page, err := s.store.GetPage(ctx, store.HeaderPageID)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Page{}, err
	}
	page = store.Page{
		ID:     store.HeaderPageID,
		Title:  HeaderPageTitle,
		Layout: store.LayoutSingle,
		Order:  store.Float(-1),
	}
	if err := s.store.InsertPage(ctx, page); err != nil {
		return store.Page{}, fmt.Errorf("ensure header page: %w", err)
	}
	return page, nil
}

// DeletePage removes every block of the page and then the page, in one batch.
func (s *Service) DeletePage(ctx context.Context, pageID string) error {
	blocks, err := s.store.ListBlocks(ctx, pageID)
	if err != nil {
		return err
	}
	batch := store.NewBatch()
	for _, block := range blocks {
		batch.DeleteBlock(pageID, block.ID)
	}
	batch.DeletePage(pageID)
	if err := s.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// ChangeLayout updates title and layout. Under a multi-column layout every
// column-less block is assigned column 1 in the same batch.
func (s *Service) ChangeLayout(ctx context.Context, pageID, title string, kind store.LayoutKind) (store.Page, error) {
	if !layout.Valid(kind) {
		return store.Page{}, fmt.Errorf("%w: %q", ErrInvalidLayout, kind)
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Page{}, err
	}

	batch := store.NewBatch().SetPageLayout(pageID, strings.TrimSpace(title), kind)
	if layout.IsMultiColumn(kind) {
		blocks, err := s.store.ListBlocks(ctx, pageID)
		if err != nil {
			return store.Page{}, fmt.Errorf("list blocks: %w", err)
		}
		for _, block := range blocks {
			if block.Column == nil {
				batch.SetBlockColumn(pageID, block.ID, 1)
			}
		}
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return store.Page{}, fmt.Errorf("change layout: %w", err)
	}
	page.Title = strings.TrimSpace(title)
	page.Layout = kind
	return page, nil
}

func (s *Service) SetColumnWidths(ctx context.Context, pageID string, widths []float64) error {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if n := layout.ColumnCount(page.Layout); len(widths) != n {
		return fmt.Errorf("%w: %d widths for %d columns", ErrInvalidColumn, len(widths), n)
	}
	for _, w := range widths {
		if w < 0 {
			return fmt.Errorf("%w: negative width", ErrInvalidColumn)
		}
	}
	return s.store.SetColumnWidths(ctx, pageID, widths)
}

func (s *Service) UpdateBlock(ctx context.Context, pageID, blockID string, patch store.BlockPatch) (store.Block, error) {
	if err := s.store.UpdateBlock(ctx, pageID, blockID, patch); err != nil {
		return store.Block{}, err
	}
	return s.store.GetBlock(ctx, pageID, blockID)
}

func (s *Service) DeleteBlock(ctx context.Context, pageID, blockID string) error {
	if _, err := s.store.GetBlock(ctx, pageID, blockID); err != nil {
		return err
	}
	if err := s.store.Commit(ctx, store.NewBatch().DeleteBlock(pageID, blockID)); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

func maxOrder(blocks []store.Block) float64 {
	highest := 0.0
	for _, block := range blocks {
		if block.Order > highest {
			highest = block.Order
		}
	}
	return highest
}

func findBlock(blocks []store.Block, blockID string) (store.Block, bool) {
	for _, block := range blocks {
		if block.ID == blockID {
			return block, true
		}
	}
	return store.Block{}, false
}

func containsPage(pages []store.Page, pageID string) bool {
	for _, page := range pages {
		if page.ID == pageID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
