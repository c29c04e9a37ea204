package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search runs plainto_tsquery over page titles and block contents, ranked with
// ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	tsQuery := "plainto_tsquery('english', $1)"

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultPage {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'page'::text AS type, p.id, p.id AS page_id, p.title, ''::text AS snippet,
				ts_rank(to_tsvector('english', p.title), %[1]s) AS rank
			FROM pages p
			WHERE to_tsvector('english', p.title) @@ %[1]s`, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultBlock {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'block'::text AS type, b.id, b.page_id, p.title,
				ts_headline('english', b.content, %[1]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(to_tsvector('english', b.content), %[1]s) AS rank
			FROM blocks b
			JOIN pages p ON p.id = b.page_id
			WHERE b.type = 'text' AND to_tsvector('english', b.content) @@ %[1]s`, tsQuery))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(subQueries, " UNION ALL ")

	// count(*) OVER () carries the unpaged total on every returned row.
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT type, id, page_id, title, snippet, count(*) OVER () AS total
		FROM (%s) matches
		ORDER BY rank DESC, id ASC
		LIMIT %d OFFSET %d`, union, q.limit(), q.offset()), q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var (
		results []Result
		total   int
	)
	for rows.Next() {
		var (
			r    Result
			kind string
		)
		if err := rows.Scan(&kind, &r.ID, &r.PageID, &r.Title, &r.Snippet, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search row: %w", err)
		}
		r.Type = ResultType(kind)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("full-text search: %w", err)
	}
	return results, total, nil
}
