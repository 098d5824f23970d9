package store

import (
	"context"
	"fmt"
	"time"
)

// InsertIngestLog records one pipeline attempt. attempted_at defaults to now
// when unset; history ordering depends on it.
func (s *Store) InsertIngestLog(ctx context.Context, e *IngestLogEntry) error {
	if e.AttemptedAt == 0 {
		e.AttemptedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ingest_log (id, url_id, url, status, stage, error_code,
		error_message, content_hash, duration_ms, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URLID, e.URL, e.Status, e.Stage, e.ErrorCode,
		e.ErrorMessage, e.ContentHash, e.DurationMs, e.AttemptedAt,
	)
	return err
}

// IngestHistory returns ingest log entries for a URL, newest first.
func (s *Store) IngestHistory(ctx context.Context, urlID string, limit int) ([]*IngestLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url_id, url, status, stage, error_code,
		error_message, content_hash, duration_ms, attempted_at
		FROM ingest_log WHERE url_id = ?
		ORDER BY attempted_at DESC LIMIT ?`, urlID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*IngestLogEntry
	for rows.Next() {
		var e IngestLogEntry
		if err := rows.Scan(&e.ID, &e.URLID, &e.URL, &e.Status, &e.Stage,
			&e.ErrorCode, &e.ErrorMessage, &e.ContentHash, &e.DurationMs,
			&e.AttemptedAt); err != nil {
			return nil, fmt.Errorf("scan ingest log: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
