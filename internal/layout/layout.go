// Package layout partitions a page's blocks into renderable columns and works
// out which move controls apply to each block and page.
package layout

import (
	"sort"

	"portfolio/api/internal/store"
)

var columnCounts = map[store.LayoutKind]int{
	store.LayoutSingle:      1,
	store.LayoutGrid:        1,
	store.LayoutMasonry:     1,
	store.LayoutTwoColumn:   2,
	store.LayoutThreeColumn: 3,
	store.LayoutFourColumn:  4,
	store.LayoutFiveColumn:  5,
	store.LayoutSixColumn:   6,
}

// Valid reports whether kind is a known layout.
func Valid(kind store.LayoutKind) bool {
	_, ok := columnCounts[kind]
	return ok
}

// ColumnCount is the number of columns a layout renders; unknown layouts render as one.
func ColumnCount(kind store.LayoutKind) int {
	if n, ok := columnCounts[kind]; ok {
		return n
	}
	return 1
}

func IsMultiColumn(kind store.LayoutKind) bool {
	return ColumnCount(kind) > 1
}

// ColumnOf returns the 1-based column a block renders in under an n-column layout.
func ColumnOf(block store.Block, n int) int {
	column := 1
	if block.Column != nil {
		column = *block.Column
	}
	if column < 1 {
		return 1
	}
	if column > n {
		return n
	}
	return column
}

// SortBlocks orders blocks by order ascending, ties by id.
func SortBlocks(blocks []store.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Order != blocks[j].Order {
			return blocks[i].Order < blocks[j].Order
		}
		return blocks[i].ID < blocks[j].ID
	})
}

type Column struct {
	Index  int           `json:"index"`
	Width  float64       `json:"width"`
	Blocks []store.Block `json:"blocks"`
}

type Resolved struct {
	PageID  string           `json:"pageId"`
	Layout  store.LayoutKind `json:"layout"`
	Columns []Column         `json:"columns"`
}

// Resolve partitions blocks for page. Single, grid and masonry pages get one
// partition; N-column pages get N buckets, each sorted by order.
func Resolve(page store.Page, blocks []store.Block) Resolved {
	n := ColumnCount(page.Layout)
	widths := ColumnWidths(page.ColumnWidths, n)
	columns := make([]Column, n)
	for i := range columns {
		columns[i] = Column{Index: i + 1, Width: widths[i], Blocks: make([]store.Block, 0)}
	}
	for _, block := range blocks {
		idx := 0
		if n > 1 {
			idx = ColumnOf(block, n) - 1
		}
		columns[idx].Blocks = append(columns[idx].Blocks, block)
	}
	for i := range columns {
		SortBlocks(columns[i].Blocks)
	}
	return Resolved{PageID: page.ID, Layout: page.Layout, Columns: columns}
}

// ColumnWidths uses saved when it has exactly n entries, else n equal shares of 100.
func ColumnWidths(saved []float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	if len(saved) == n {
		return append([]float64(nil), saved...)
	}
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = 100 / float64(n)
	}
	return widths
}

// Siblings returns the blocks sharing a column with blockID, in render order.
func Siblings(page store.Page, blocks []store.Block, blockID string) ([]store.Block, bool) {
	for _, column := range Resolve(page, blocks).Columns {
		for _, block := range column.Blocks {
			if block.ID == blockID {
				return column.Blocks, true
			}
		}
	}
	return nil, false
}
