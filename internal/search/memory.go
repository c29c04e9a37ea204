package search

import (
	"context"
	"fmt"
	"strings"

	"portfolio/api/internal/store"
)

// SnapshotSource yields the whole site.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (store.SiteSnapshot, error)
}

// Scan implements Searcher by matching every query word against the current
// site content. It backs the memory store mode.
type Scan struct {
	source SnapshotSource
}

func NewScan(source SnapshotSource) *Scan {
	return &Scan{source: source}
}

func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	words := strings.Fields(strings.ToLower(q.Text))
	if len(words) == 0 {
		return nil, 0, nil
	}
	site, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("scan snapshot: %w", err)
	}
	pages, blocks := Records(site)

	var matches []Result
	if q.FilterType == "" || q.FilterType == ResultPage {
		for _, page := range pages {
			if containsAll(page.Title, words) {
				matches = append(matches, Result{Type: ResultPage, ID: page.ID, PageID: page.ID, Title: page.Title})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultBlock {
		for _, block := range blocks {
			if containsAll(block.Content, words) {
				matches = append(matches, Result{
					Type:    ResultBlock,
					ID:      block.ID,
					PageID:  block.PageID,
					Title:   block.PageTitle,
					Snippet: snippet(block.Content, words[0]),
				})
			}
		}
	}

	total := len(matches)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)
	return matches[start:end], total, nil
}

// Records flattens a site into index records.
func Records(site store.SiteSnapshot) ([]PageRecord, []BlockRecord) {
	pages := make([]PageRecord, 0, len(site.Pages))
	blocks := make([]BlockRecord, 0)
	for _, page := range site.Pages {
		pages = append(pages, PageRecord{ID: page.ID, Title: page.Title, Layout: string(page.Layout)})
		for _, block := range page.Blocks {
			if block.Type != store.BlockText {
				continue
			}
			blocks = append(blocks, BlockRecord{ID: block.ID, PageID: page.ID, PageTitle: page.Title, Content: block.Content})
		}
	}
	return pages, blocks
}

func containsAll(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, word := range words {
		if !strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

func snippet(text, word string) string {
	const radius = 60
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	idx := 0
	if len(lower) == len(runes) {
		if i := strings.Index(string(lower), word); i >= 0 {
			idx = len([]rune(string(lower)[:i]))
		}
	}
	start := max(idx-radius, 0)
	end := min(idx+len([]rune(word))+radius, len(runes))
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}
