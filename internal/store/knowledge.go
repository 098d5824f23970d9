package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const entryColumns = `id, url_id, url, title, content_type, text, metadata, tags,
	created_at, updated_at, size, checksum, processing_status, error_message`

// UpsertKnowledgeEntry inserts an entry, or replaces the mutable fields of
// the existing row when the (url_id, checksum) pair is already present.
// Re-storing identical content for the same URL never creates a second row.
// Returns the id of the surviving row.
func (s *Store) UpsertKnowledgeEntry(ctx context.Context, e *KnowledgeEntry) (string, error) {
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.MetadataJSON == "" {
		e.MetadataJSON = "{}"
	}
	if e.TagsJSON == "" {
		e.TagsJSON = "[]"
	}
	if e.ProcessingStatus == "" {
		e.ProcessingStatus = StatusCompleted
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url_id, checksum) DO UPDATE SET
			title = excluded.title,
			content_type = excluded.content_type,
			text = excluded.text,
			metadata = excluded.metadata,
			tags = excluded.tags,
			updated_at = excluded.updated_at,
			size = excluded.size,
			processing_status = excluded.processing_status,
			error_message = excluded.error_message`,
		e.ID, e.URLID, e.URL, e.Title, e.ContentType, e.Text, e.MetadataJSON, e.TagsJSON,
		e.CreatedAt, e.UpdatedAt, e.Size, e.Checksum, e.ProcessingStatus, e.ErrorMessage,
	)
	if err != nil {
		return "", fmt.Errorf("upsert knowledge entry: %w", err)
	}

	var id string
	err = s.DB.QueryRowContext(ctx,
		`SELECT id FROM knowledge_entries WHERE url_id = ? AND checksum = ?`,
		e.URLID, e.Checksum).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolve knowledge entry id: %w", err)
	}
	return id, nil
}

// GetKnowledgeEntry retrieves an entry by ID. Returns nil, nil if absent.
func (s *Store) GetKnowledgeEntry(ctx context.Context, id string) (*KnowledgeEntry, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = ?`, id)
	return scanEntry(row)
}

// ListKnowledgeEntries returns entries for a URL, newest first.
func (s *Store) ListKnowledgeEntries(ctx context.Context, urlID string, limit int) ([]*KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries
		WHERE url_id = ? ORDER BY created_at DESC LIMIT ?`, urlID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*KnowledgeEntry
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteKnowledgeEntry removes an entry explicitly.
func (s *Store) DeleteKnowledgeEntry(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	return err
}

func scanEntry(row *sql.Row) (*KnowledgeEntry, error) {
	var e KnowledgeEntry
	err := row.Scan(
		&e.ID, &e.URLID, &e.URL, &e.Title, &e.ContentType, &e.Text, &e.MetadataJSON,
		&e.TagsJSON, &e.CreatedAt, &e.UpdatedAt, &e.Size, &e.Checksum,
		&e.ProcessingStatus, &e.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan knowledge entry: %w", err)
	}
	return &e, nil
}

func scanEntryRows(rows *sql.Rows) (*KnowledgeEntry, error) {
	var e KnowledgeEntry
	err := rows.Scan(
		&e.ID, &e.URLID, &e.URL, &e.Title, &e.ContentType, &e.Text, &e.MetadataJSON,
		&e.TagsJSON, &e.CreatedAt, &e.UpdatedAt, &e.Size, &e.Checksum,
		&e.ProcessingStatus, &e.ErrorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("scan knowledge entry: %w", err)
	}
	return &e, nil
}
