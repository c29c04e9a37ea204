package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxPages  = "portfolio_pages"
	idxBlocks = "portfolio_blocks"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client    meili.ServiceManager
	logger    *zap.Logger
	healthy   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewMeili creates a Meilisearch client and configures indexes. An unreachable
// server is tolerated; a background loop keeps probing it.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	_, err := client.Health()
	m.healthy.Store(err == nil)
	if err != nil {
		logger.Warn("meilisearch unavailable, search falls back", zap.String("url", url), zap.Error(err))
	} else {
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

type indexSettings struct {
	uid        string
	filterable []string
	searchable []string
}

var indexes = []indexSettings{
	{uid: idxPages, filterable: []string{"layout"}, searchable: []string{"title"}},
	{uid: idxBlocks, filterable: []string{"pageId"}, searchable: []string{"content", "pageTitle"}},
}

// configureIndexes creates both indexes and applies their settings. Errors are
// logged; a failed setting only degrades ranking and filtering.
func (m *Meili) configureIndexes() {
	for _, settings := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: settings.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug("create index", zap.String("index", settings.uid), zap.Error(err))
		}
		index := m.client.Index(settings.uid)
		filterable := make([]interface{}, 0, len(settings.filterable))
		for _, attr := range settings.filterable {
			filterable = append(filterable, attr)
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("set filterable attributes", zap.String("index", settings.uid), zap.Error(err))
		}
		searchable := settings.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn("set searchable attributes", zap.String("index", settings.uid), zap.Error(err))
		}
	}
}

const healthInterval = 10 * time.Second

// healthLoop probes the server and reapplies index settings when it comes back.
func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}
		_, err := m.client.Health()
		if wasHealthy := m.healthy.Swap(err == nil); err == nil && !wasHealthy {
			m.logger.Info("meilisearch reachable again")
			m.configureIndexes()
		}
	}
}

// Close stops the health loop. Safe to call more than once.
func (m *Meili) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or one, when filtered) and merges results.
func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	var queries []*meili.SearchRequest
	for _, target := range []struct {
		uid  string
		kind ResultType
	}{{idxPages, ResultPage}, {idxBlocks, ResultBlock}} {
		if q.FilterType != "" && q.FilterType != target.kind {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 int64(q.limit()),
			Offset:                int64(q.offset()),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := ResultBlock
		if sr.IndexUID == idxPages {
			kind = ResultPage
		}
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, kind))
		}
	}
	return results, total, nil
}

// hitFields covers both index schemas; _formatted carries the highlighted copy.
type hitFields struct {
	ID        string `json:"id"`
	PageID    string `json:"pageId"`
	Title     string `json:"title"`
	PageTitle string `json:"pageTitle"`
	Content   string `json:"content"`
	Formatted struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"_formatted"`
}

func hitToResult(hit meili.Hit, kind ResultType) Result {
	var f hitFields
	if raw, err := json.Marshal(hit); err == nil {
		_ = json.Unmarshal(raw, &f)
	}
	r := Result{Type: kind, ID: f.ID}
	if kind == ResultPage {
		r.PageID = f.ID
		r.Title = highlighted(f.Formatted.Title, f.Title)
		return r
	}
	r.PageID = f.PageID
	r.Title = f.PageTitle
	r.Snippet = highlighted(f.Formatted.Content, f.Content)
	return r
}

func highlighted(formatted, plain string) string {
	if s := strings.TrimSpace(formatted); s != "" {
		return s
	}
	return plain
}

func (m *Meili) IndexPages(pages []PageRecord) error {
	if len(pages) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPages).AddDocuments(pages, nil)
	return err
}

func (m *Meili) IndexBlocks(blocks []BlockRecord) error {
	if len(blocks) == 0 {
		return nil
	}
	_, err := m.client.Index(idxBlocks).AddDocuments(blocks, nil)
	return err
}

func (m *Meili) DeletePage(id string) error {
	_, err := m.client.Index(idxPages).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeleteBlock(id string) error {
	_, err := m.client.Index(idxBlocks).DeleteDocument(id, nil)
	return err
}
