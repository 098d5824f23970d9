package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchKnowledge performs a FTS5 full-text search on knowledge entries,
// best matches first. The query is quoted per-term so user input cannot
// inject FTS5 operators.
func (s *Store) SearchKnowledge(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT e.id, e.url_id, e.url, e.title, snippet(knowledge_fts, 1, '', '', '…', 40), rank
		FROM knowledge_fts f
		JOIN knowledge_entries e ON e.rowid = f.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.EntryID, &r.URLID, &r.URL, &r.Title, &r.Text, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// ftsQuery turns free-form user input into a safe FTS5 MATCH expression:
// each whitespace-separated term becomes a quoted phrase, joined with AND.
func ftsQuery(input string) string {
	terms := strings.Fields(input)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}
