package store

import "context"

// Stats returns aggregate counters for the catalog.
func (s *Store) Stats(ctx context.Context) (*CatalogStats, error) {
	stats := &CatalogStats{URLsByStatus: make(map[string]int)}

	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM urls GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.URLsByStatus[status] = n
		stats.URLs += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, q := range []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM knowledge_entries`, &stats.Entries},
		{`SELECT COUNT(*) FROM tags`, &stats.Tags},
		{`SELECT COUNT(*) FROM original_files`, &stats.OriginalFiles},
		{`SELECT COUNT(*) FROM ingest_log`, &stats.IngestLogs},
	} {
		if err := s.DB.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
