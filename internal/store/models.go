package store

import (
	"encoding/json"
	"time"
)

// HeaderPageID is the reserved page rendered inside the site header.
const HeaderPageID = "header"

// ResumeID is the id of the single résumé document.
const ResumeID = "main"

type LayoutKind string

const (
	LayoutSingle      LayoutKind = "single"
	LayoutTwoColumn   LayoutKind = "two-column"
	LayoutThreeColumn LayoutKind = "three-column"
	LayoutFourColumn  LayoutKind = "four-column"
	LayoutFiveColumn  LayoutKind = "five-column"
	LayoutSixColumn   LayoutKind = "six-column"
	LayoutGrid        LayoutKind = "grid"
	LayoutMasonry     LayoutKind = "masonry"
)

type BlockType string

const (
	BlockText   BlockType = "text"
	BlockSpacer BlockType = "spacer"
)

type Page struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title,omitempty" yaml:"title"`
	Layout       LayoutKind `json:"layout" yaml:"layout"`
	ColumnWidths []float64  `json:"columnLayout,omitempty" yaml:"columnLayout"`
	// Order is nil for legacy documents written before pages carried one.
	Order     *float64  `json:"order,omitempty" yaml:"order"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

type Block struct {
	ID        string    `json:"id" yaml:"id"`
	PageID    string    `json:"pageId" yaml:"-"`
	Type      BlockType `json:"type" yaml:"type"`
	Order     float64   `json:"order" yaml:"order"`
	Column    *int      `json:"column,omitempty" yaml:"column"`
	ClassName string    `json:"className,omitempty" yaml:"className"`
	Content   string    `json:"content,omitempty" yaml:"content"`
	Height    int       `json:"height,omitempty" yaml:"height"`
}

// BlockPatch carries the editable payload fields of a block; nil fields are left unchanged.
type BlockPatch struct {
	Content   *string `json:"content"`
	Height    *int    `json:"height"`
	ClassName *string `json:"className"`
}

type Message struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResumeDocument is the raw JSON body of the résumé document.
type ResumeDocument struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// SiteSnapshot is every page with its blocks, used for history, fallback and seeding.
type SiteSnapshot struct {
	Pages  []PageWithBlocks `json:"pages" yaml:"pages"`
	Resume json.RawMessage  `json:"resume,omitempty" yaml:"-"`
}

type PageWithBlocks struct {
	Page   `yaml:",inline"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}
