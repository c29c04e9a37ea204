package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPage  ResultType = "page"
	ResultBlock ResultType = "block"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	PageID  string     `json:"pageId"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// PageRecord is the data we index for a page.
type PageRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Layout string `json:"layout"`
}

// BlockRecord is the data we index for a text block. Spacers are not indexed.
type BlockRecord struct {
	ID        string `json:"id"`
	PageID    string `json:"pageId"`
	PageTitle string `json:"pageTitle"`
	Content   string `json:"content"`
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
