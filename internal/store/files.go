package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const fileColumns = `id, url_id, url, file_path, mime_type, size, checksum,
	scraper_used, status, metadata, created_at, updated_at, accessed_at, download_url`

// InsertOriginalFile records a persisted raw payload. file_path is unique;
// re-recording the same path updates the existing row instead.
func (s *Store) InsertOriginalFile(ctx context.Context, f *OriginalFile) error {
	now := time.Now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = FileActive
	}
	if f.MetadataJSON == "" {
		f.MetadataJSON = "{}"
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO original_files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_path) DO UPDATE SET
			url_id = excluded.url_id,
			url = excluded.url,
			mime_type = excluded.mime_type,
			size = excluded.size,
			checksum = excluded.checksum,
			scraper_used = excluded.scraper_used,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			download_url = excluded.download_url`,
		f.ID, nullIfEmpty(f.URLID), f.URL, f.FilePath, f.MimeType, f.Size, f.Checksum,
		f.ScraperUsed, f.Status, f.MetadataJSON, f.CreatedAt, f.UpdatedAt,
		nullIfZero(f.AccessedAt), f.DownloadURL,
	)
	if err != nil {
		return fmt.Errorf("insert original file: %w", err)
	}
	return nil
}

// GetOriginalFile retrieves a file record by ID. Returns nil, nil if absent.
func (s *Store) GetOriginalFile(ctx context.Context, id string) (*OriginalFile, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM original_files WHERE id = ?`, id)
	return scanFile(row)
}

// ListOriginalFiles returns file records for a URL, newest first.
func (s *Store) ListOriginalFiles(ctx context.Context, urlID string, limit int) ([]*OriginalFile, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM original_files
		WHERE url_id = ? ORDER BY created_at DESC LIMIT ?`, urlID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*OriginalFile
	for rows.Next() {
		f, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// TouchOriginalFile stamps accessed_at on a file record.
func (s *Store) TouchOriginalFile(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE original_files SET accessed_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	return err
}

// UpdateOriginalFileStatus moves a file record through its lifecycle.
func (s *Store) UpdateOriginalFileStatus(ctx context.Context, id, status string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE original_files SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id)
	return err
}

// SweepOriginalFiles marks active records older than cutoff (and not accessed
// since) as deleted and returns their file paths so the caller can remove the
// bytes. This is the only path that retires file rows.
func (s *Store) SweepOriginalFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	ms := cutoff.UnixMilli()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT file_path FROM original_files
		WHERE status = ? AND created_at < ?
		  AND (accessed_at IS NULL OR accessed_at < ?)`,
		FileActive, ms, ms)
	if err != nil {
		return nil, fmt.Errorf("sweep original files: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE original_files SET status = ?, updated_at = ?
		WHERE status = ? AND created_at < ?
		  AND (accessed_at IS NULL OR accessed_at < ?)`,
		FileDeleted, time.Now().UnixMilli(), FileActive, ms, ms)
	if err != nil {
		return nil, fmt.Errorf("sweep original files: %w", err)
	}
	return paths, nil
}

func scanFile(row *sql.Row) (*OriginalFile, error) {
	var f OriginalFile
	var urlID sql.NullString
	var accessedAt sql.NullInt64
	err := row.Scan(
		&f.ID, &urlID, &f.URL, &f.FilePath, &f.MimeType, &f.Size, &f.Checksum,
		&f.ScraperUsed, &f.Status, &f.MetadataJSON, &f.CreatedAt, &f.UpdatedAt,
		&accessedAt, &f.DownloadURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan original file: %w", err)
	}
	f.URLID = urlID.String
	f.AccessedAt = accessedAt.Int64
	return &f, nil
}

func scanFileRows(rows *sql.Rows) (*OriginalFile, error) {
	var f OriginalFile
	var urlID sql.NullString
	var accessedAt sql.NullInt64
	err := rows.Scan(
		&f.ID, &urlID, &f.URL, &f.FilePath, &f.MimeType, &f.Size, &f.Checksum,
		&f.ScraperUsed, &f.Status, &f.MetadataJSON, &f.CreatedAt, &f.UpdatedAt,
		&accessedAt, &f.DownloadURL,
	)
	if err != nil {
		return nil, fmt.Errorf("scan original file: %w", err)
	}
	f.URLID = urlID.String
	f.AccessedAt = accessedAt.Int64
	return &f, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
