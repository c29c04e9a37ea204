// Package render turns stored blocks into sanitized HTML fragments.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"portfolio/api/internal/layout"
	"portfolio/api/internal/store"
)

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
		),
	)
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	return &Renderer{md: md, policy: policy}
}

// Markdown converts markdown to HTML and strips anything unsafe. Raw HTML in the
// source is kept when the policy allows it.
func (r *Renderer) Markdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Block renders one block wrapped in a div carrying its class name.
func (r *Renderer) Block(block store.Block) (string, error) {
	class := classAttr(block.ClassName)
	switch block.Type {
	case store.BlockSpacer:
		height := block.Height
		if height < 0 {
			height = 0
		}
		return `<div` + class + ` style="height:` + strconv.Itoa(height) + `px"></div>`, nil
	case store.BlockText:
		body, err := r.Markdown(block.Content)
		if err != nil {
			return "", fmt.Errorf("render block %s: %w", block.ID, err)
		}
		return `<div` + class + `>` + body + `</div>`, nil
	}
	return "", fmt.Errorf("render block %s: unknown type %q", block.ID, block.Type)
}

type RenderedColumn struct {
	Index int     `json:"index"`
	Width float64 `json:"width"`
	HTML  string  `json:"html"`
}

type RenderedPage struct {
	PageID  string           `json:"pageId"`
	Title   string           `json:"title,omitempty"`
	Layout  store.LayoutKind `json:"layout"`
	Columns []RenderedColumn `json:"columns"`
}

// Page renders a resolved partition column by column.
func (r *Renderer) Page(page store.Page, resolved layout.Resolved) (RenderedPage, error) {
	out := RenderedPage{
		PageID:  page.ID,
		Title:   page.Title,
		Layout:  resolved.Layout,
		Columns: make([]RenderedColumn, 0, len(resolved.Columns)),
	}
	for _, column := range resolved.Columns {
		var sb strings.Builder
		for _, block := range column.Blocks {
			fragment, err := r.Block(block)
			if err != nil {
				return RenderedPage{}, err
			}
			sb.WriteString(fragment)
		}
		out.Columns = append(out.Columns, RenderedColumn{Index: column.Index, Width: column.Width, HTML: sb.String()})
	}
	return out, nil
}

// Text returns the plain text of a markdown source, used for search snippets.
func (r *Renderer) Text(source string) (string, error) {
	rendered, err := r.Markdown(source)
	if err != nil {
		return "", err
	}
	plain := bluemonday.StrictPolicy().Sanitize(rendered)
	return strings.Join(strings.Fields(html.UnescapeString(plain)), " "), nil
}

func classAttr(className string) string {
	className = strings.TrimSpace(className)
	if className == "" {
		return ""
	}
	return ` class="` + html.EscapeString(className) + `"`
}
