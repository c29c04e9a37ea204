package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"portfolio/api/internal/store"
)

type siteSource struct {
	site store.SiteSnapshot
	err  error
}

func (s siteSource) Snapshot(context.Context) (store.SiteSnapshot, error) {
	return s.site, s.err
}

func testSite() store.SiteSnapshot {
	return store.SiteSnapshot{Pages: []store.PageWithBlocks{
		{
			Page: store.Page{ID: "about", Title: "About Me", Layout: store.LayoutSingle},
			Blocks: []store.Block{
				{ID: "b1", Type: store.BlockText, Content: "I write Go services and distributed systems."},
				{ID: "b2", Type: store.BlockSpacer, Height: 40},
			},
		},
		{
			Page:   store.Page{ID: "projects", Title: "Projects", Layout: store.LayoutGrid},
			Blocks: []store.Block{{ID: "b3", Type: store.BlockText, Content: "A Go CLI for static sites."}},
		},
	}}
}

func TestScanMatchesPagesAndBlocks(t *testing.T) {
	scan := NewScan(siteSource{site: testSite()})

	results, total, err := scan.Search(context.Background(), Query{Text: "go"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("expected 2 block hits, got %d (%+v)", total, results)
	}
	if results[0].PageID != "about" || results[0].Title != "About Me" {
		t.Fatalf("unexpected first hit %+v", results[0])
	}

	results, _, err = scan.Search(context.Background(), Query{Text: "about", FilterType: ResultPage})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Type != ResultPage {
		t.Fatalf("expected one page hit, got %+v", results)
	}
}

func TestScanPaginates(t *testing.T) {
	scan := NewScan(siteSource{site: testSite()})
	results, total, err := scan.Search(context.Background(), Query{Text: "go", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 1 || results[0].ID != "b3" {
		t.Fatalf("unexpected page: total=%d results=%+v", total, results)
	}
}

func TestScanSnippetIsBounded(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 40) + "needle" + strings.Repeat(" dolor sit", 40)
	got := snippet(long, "needle")
	if !strings.Contains(got, "needle") || !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected snippet %q", got)
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, NewScan(siteSource{site: testSite()}), nil)
	resp := svc.Search(context.Background(), Query{Text: "static"})
	if resp.Total != 1 || resp.Results[0].ID != "b3" {
		t.Fatalf("unexpected response %+v", resp)
	}

	broken := NewService(nil, NewScan(siteSource{err: errors.New("down")}), nil)
	resp = broken.Search(context.Background(), Query{Text: "static"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp.Results)
	}

	if err := svc.ReindexAll(context.Background(), testSite()); err == nil {
		t.Fatal("expected reindex to fail without meilisearch")
	}
}

func TestRecordsSkipSpacers(t *testing.T) {
	pages, blocks := Records(testSite())
	if len(pages) != 2 || len(blocks) != 2 {
		t.Fatalf("unexpected records: %d pages, %d blocks", len(pages), len(blocks))
	}
	for _, block := range blocks {
		if block.ID == "b2" {
			t.Fatal("spacer should not be indexed")
		}
	}
}
