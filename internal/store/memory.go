package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps pages, blocks and the résumé in process. Batches are applied
// to a copy and swapped in only when every write succeeded.
type MemoryStore struct {
	mu       sync.RWMutex
	pages    map[string]Page
	blocks   map[string]map[string]Block
	resume   json.RawMessage
	messages []Message
	users    map[string]User
	readOnly bool

	// BeforeApply, when set, runs before each batch write; an error aborts the whole batch.
	BeforeApply func(index int) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:  make(map[string]Page),
		blocks: make(map[string]map[string]Block),
		users:  make(map[string]User),
	}
}

// NewReadOnlyMemoryStore loads a snapshot and rejects every later write.
func NewReadOnlyMemoryStore(snapshot SiteSnapshot) *MemoryStore {
	s := NewMemoryStore()
	s.Load(snapshot)
	s.readOnly = true
	return s
}

// Load replaces the store contents with snapshot.
func (s *MemoryStore) Load(snapshot SiteSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[string]Page, len(snapshot.Pages))
	s.blocks = make(map[string]map[string]Block, len(snapshot.Pages))
	base := time.Now().UTC()
	for i, item := range snapshot.Pages {
		page := item.Page
		if page.CreatedAt.IsZero() {
			page.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		}
		s.pages[page.ID] = page
		blocks := make(map[string]Block, len(item.Blocks))
		for _, block := range item.Blocks {
			block.PageID = page.ID
			blocks[block.ID] = block
		}
		s.blocks[page.ID] = blocks
	}
	if len(snapshot.Resume) > 0 {
		s.resume = append(json.RawMessage(nil), snapshot.Resume...)
	}
}

func (s *MemoryStore) ReadOnly() bool {
	return s.readOnly
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) ListPages(context.Context) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Page, 0, len(s.pages))
	for _, page := range s.pages {
		items = append(items, clonePage(page))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) GetPage(_ context.Context, pageID string) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok {
		return Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return clonePage(page), nil
}

func (s *MemoryStore) InsertPage(_ context.Context, page Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	s.pages[page.ID] = clonePage(page)
	if _, ok := s.blocks[page.ID]; !ok {
		s.blocks[page.ID] = make(map[string]Block)
	}
	return nil
}

func (s *MemoryStore) SetColumnWidths(_ context.Context, pageID string, widths []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	page, ok := s.pages[pageID]
	if !ok {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	page.ColumnWidths = append([]float64(nil), widths...)
	page.UpdatedAt = time.Now().UTC()
	s.pages[pageID] = page
	return nil
}

func (s *MemoryStore) ListBlocks(_ context.Context, pageID string) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pages[pageID]; !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	items := make([]Block, 0, len(s.blocks[pageID]))
	for _, block := range s.blocks[pageID] {
		items = append(items, cloneBlock(block))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) GetBlock(_ context.Context, pageID, blockID string) (Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.blocks[pageID][blockID]
	if !ok {
		return Block{}, fmt.Errorf("block %s/%s: %w", pageID, blockID, ErrNotFound)
	}
	return cloneBlock(block), nil
}

func (s *MemoryStore) InsertBlock(_ context.Context, block Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	if _, ok := s.pages[block.PageID]; !ok {
		return fmt.Errorf("page %s: %w", block.PageID, ErrNotFound)
	}
	s.blocks[block.PageID][block.ID] = cloneBlock(block)
	return nil
}

func (s *MemoryStore) UpdateBlock(_ context.Context, pageID, blockID string, patch BlockPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	block, ok := s.blocks[pageID][blockID]
	if !ok {
		return fmt.Errorf("block %s/%s: %w", pageID, blockID, ErrNotFound)
	}
	if patch.Content != nil {
		block.Content = *patch.Content
	}
	if patch.Height != nil {
		block.Height = *patch.Height
	}
	if patch.ClassName != nil {
		block.ClassName = *patch.ClassName
	}
	s.blocks[pageID][blockID] = block
	return nil
}

// Commit applies every write of batch or none of them.
func (s *MemoryStore) Commit(_ context.Context, batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}

	pages := make(map[string]Page, len(s.pages))
	for id, page := range s.pages {
		pages[id] = page
	}
	blocks := make(map[string]map[string]Block, len(s.blocks))
	for pageID, items := range s.blocks {
		copied := make(map[string]Block, len(items))
		for id, block := range items {
			copied[id] = block
		}
		blocks[pageID] = copied
	}

	now := time.Now().UTC()
	for i, op := range batch.ops {
		if s.BeforeApply != nil {
			if err := s.BeforeApply(i); err != nil {
				return fmt.Errorf("apply batch write %d: %w", i, err)
			}
		}
		switch op.kind {
		case opSetBlockOrder, opSetBlockPlacement, opSetBlockColumn:
			block, ok := blocks[op.pageID][op.blockID]
			if !ok {
				return fmt.Errorf("block %s/%s: %w", op.pageID, op.blockID, ErrNotFound)
			}
			if op.kind != opSetBlockColumn {
				block.Order = op.order
			}
			if op.kind != opSetBlockOrder {
				block.Column = Int(op.column)
			}
			blocks[op.pageID][op.blockID] = block
		case opSetPageOrder, opSetPageLayout:
			page, ok := pages[op.pageID]
			if !ok {
				return fmt.Errorf("page %s: %w", op.pageID, ErrNotFound)
			}
			if op.kind == opSetPageOrder {
				page.Order = Float(op.order)
			} else {
				page.Title = op.title
				page.Layout = op.layout
			}
			page.UpdatedAt = now
			pages[op.pageID] = page
		case opDeleteBlock:
			if _, ok := blocks[op.pageID][op.blockID]; !ok {
				return fmt.Errorf("block %s/%s: %w", op.pageID, op.blockID, ErrNotFound)
			}
			delete(blocks[op.pageID], op.blockID)
		case opDeletePage:
			if _, ok := pages[op.pageID]; !ok {
				return fmt.Errorf("page %s: %w", op.pageID, ErrNotFound)
			}
			delete(pages, op.pageID)
			delete(blocks, op.pageID)
		default:
			return fmt.Errorf("unknown batch write kind %d", op.kind)
		}
	}

	s.pages = pages
	s.blocks = blocks
	return nil
}

func (s *MemoryStore) GetResume(context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.resume) == 0 {
		return nil, fmt.Errorf("resume: %w", ErrNotFound)
	}
	return append(json.RawMessage(nil), s.resume...), nil
}

func (s *MemoryStore) SaveResume(_ context.Context, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	s.resume = append(json.RawMessage(nil), data...)
	return nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *MemoryStore) ListMessages(context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]Message(nil), s.messages...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return ErrReadOnly
	}
	for i, message := range s.messages {
		if message.ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return user, nil
}

// UpsertUser ignores read-only mode; accounts are not site content.
func (s *MemoryStore) UpsertUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			user.ID = id
			user.CreatedAt = existing.CreatedAt
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return nil
}

// Snapshot returns every page with its blocks plus the résumé.
func (s *MemoryStore) Snapshot(ctx context.Context) (SiteSnapshot, error) {
	return BuildSnapshot(ctx, s)
}

func clonePage(page Page) Page {
	if page.ColumnWidths != nil {
		page.ColumnWidths = append([]float64(nil), page.ColumnWidths...)
	}
	if page.Order != nil {
		page.Order = Float(*page.Order)
	}
	return page
}

func cloneBlock(block Block) Block {
	if block.Column != nil {
		block.Column = Int(*block.Column)
	}
	return block
}
