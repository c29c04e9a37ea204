package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrReadOnly = errors.New("store is read-only")

	// ErrCommitUncertain marks a failed COMMIT: the batch may or may not have
	// been applied, so it must not be replayed.
	ErrCommitUncertain = errors.New("commit outcome unknown")
)

type opKind int

const (
	opSetBlockOrder opKind = iota + 1
	opSetBlockPlacement
	opSetBlockColumn
	opSetPageOrder
	opSetPageLayout
	opDeleteBlock
	opDeletePage
)

type batchOp struct {
	kind    opKind
	pageID  string
	blockID string
	order   float64
	column  int
	title   string
	layout  LayoutKind
}

// Batch is an ordered list of writes committed all-or-nothing by a Store.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) SetBlockOrder(pageID, blockID string, order float64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetBlockOrder, pageID: pageID, blockID: blockID, order: order})
	return b
}

// SetBlockPlacement updates column and order of a block in one write.
func (b *Batch) SetBlockPlacement(pageID, blockID string, column int, order float64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetBlockPlacement, pageID: pageID, blockID: blockID, column: column, order: order})
	return b
}

// SetBlockColumn assigns a column without touching the block's order.
func (b *Batch) SetBlockColumn(pageID, blockID string, column int) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetBlockColumn, pageID: pageID, blockID: blockID, column: column})
	return b
}

func (b *Batch) SetPageOrder(pageID string, order float64) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetPageOrder, pageID: pageID, order: order})
	return b
}

func (b *Batch) SetPageLayout(pageID, title string, layout LayoutKind) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSetPageLayout, pageID: pageID, title: title, layout: layout})
	return b
}

func (b *Batch) DeleteBlock(pageID, blockID string) *Batch {
	b.ops = append(b.ops, batchOp{kind: opDeleteBlock, pageID: pageID, blockID: blockID})
	return b
}

func (b *Batch) DeletePage(pageID string) *Batch {
	b.ops = append(b.ops, batchOp{kind: opDeletePage, pageID: pageID})
	return b
}

func (b *Batch) Len() int {
	return len(b.ops)
}
