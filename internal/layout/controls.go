package layout

import (
	"sort"

	"portfolio/api/internal/store"
)

type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

func (d Direction) Vertical() bool {
	return d == Up || d == Down
}

func (d Direction) Horizontal() bool {
	return d == Left || d == Right
}

type BlockControls struct {
	BlockID      string `json:"blockId"`
	Column       int    `json:"column"`
	CanMoveUp    bool   `json:"canMoveUp"`
	CanMoveDown  bool   `json:"canMoveDown"`
	CanMoveLeft  bool   `json:"canMoveLeft"`
	CanMoveRight bool   `json:"canMoveRight"`
}

type PageControls struct {
	PageID      string `json:"pageId"`
	CanMoveUp   bool   `json:"canMoveUp"`
	CanMoveDown bool   `json:"canMoveDown"`
}

// BlockAffordances lists the move controls of every block on page, in render order.
func BlockAffordances(page store.Page, blocks []store.Block) []BlockControls {
	resolved := Resolve(page, blocks)
	n := len(resolved.Columns)
	multi := IsMultiColumn(page.Layout)
	out := make([]BlockControls, 0, len(blocks))
	for _, column := range resolved.Columns {
		for i, block := range column.Blocks {
			out = append(out, BlockControls{
				BlockID:      block.ID,
				Column:       column.Index,
				CanMoveUp:    i > 0,
				CanMoveDown:  i < len(column.Blocks)-1,
				CanMoveLeft:  multi && column.Index > 1,
				CanMoveRight: multi && column.Index < n,
			})
		}
	}
	return out
}

// BlockNeighbor returns the block that blockID swaps with when moved up or down
// inside its column. ok is false at the boundary.
func BlockNeighbor(page store.Page, blocks []store.Block, blockID string, dir Direction) (store.Block, bool) {
	siblings, found := Siblings(page, blocks, blockID)
	if !found {
		return store.Block{}, false
	}
	return neighbor(len(siblings), indexOfBlock(siblings, blockID), dir, func(i int) store.Block { return siblings[i] })
}

// ResolvePageOrders maps each page id to its effective order: the stored value,
// or the page's index when every page is sorted by creation time. Pages without
// either are left out.
func ResolvePageOrders(pages []store.Page) map[string]float64 {
	byCreation := make([]store.Page, 0, len(pages))
	for _, page := range pages {
		if !page.CreatedAt.IsZero() {
			byCreation = append(byCreation, page)
		}
	}
	sort.SliceStable(byCreation, func(i, j int) bool {
		return byCreation[i].CreatedAt.Before(byCreation[j].CreatedAt)
	})
	implicit := make(map[string]int, len(byCreation))
	for i, page := range byCreation {
		implicit[page.ID] = i
	}

	orders := make(map[string]float64, len(pages))
	for _, page := range pages {
		switch {
		case page.Order != nil:
			orders[page.ID] = *page.Order
		default:
			if idx, ok := implicit[page.ID]; ok {
				orders[page.ID] = float64(idx)
			}
		}
	}
	return orders
}

// OrderPages returns the visitor-facing pages in display order and the header
// page, if present.
func OrderPages(pages []store.Page) ([]store.Page, *store.Page) {
	orders := ResolvePageOrders(pages)
	var header *store.Page
	visible := make([]store.Page, 0, len(pages))
	for _, page := range pages {
		if page.ID == store.HeaderPageID {
			p := page
			header = &p
			continue
		}
		visible = append(visible, page)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		oi, iok := orders[visible[i].ID]
		oj, jok := orders[visible[j].ID]
		switch {
		case iok && jok && oi != oj:
			return oi < oj
		case iok != jok:
			return iok
		case !visible[i].CreatedAt.Equal(visible[j].CreatedAt):
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible, header
}

func PageAffordances(pages []store.Page) []PageControls {
	ordered, _ := OrderPages(pages)
	out := make([]PageControls, 0, len(ordered))
	for i, page := range ordered {
		out = append(out, PageControls{
			PageID:      page.ID,
			CanMoveUp:   i > 0,
			CanMoveDown: i < len(ordered)-1,
		})
	}
	return out
}

// PageNeighbor returns the visitor-ordered page that pageID swaps with.
func PageNeighbor(pages []store.Page, pageID string, dir Direction) (store.Page, bool) {
	ordered, _ := OrderPages(pages)
	idx := -1
	for i, page := range ordered {
		if page.ID == pageID {
			idx = i
			break
		}
	}
	return neighbor(len(ordered), idx, dir, func(i int) store.Page { return ordered[i] })
}

func neighbor[T any](length, idx int, dir Direction, at func(int) T) (T, bool) {
	var zero T
	if idx < 0 {
		return zero, false
	}
	switch dir {
	case Up:
		if idx > 0 {
			return at(idx - 1), true
		}
	case Down:
		if idx < length-1 {
			return at(idx + 1), true
		}
	}
	return zero, false
}

func indexOfBlock(blocks []store.Block, blockID string) int {
	for i, block := range blocks {
		if block.ID == blockID {
			return i
		}
	}
	return -1
}
