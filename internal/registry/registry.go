// CLAUDE:SUMMARY URL registry: idempotent upsert by normalized URL, status lifecycle, content-hash versioning.
// Package registry tracks every URL the pipeline has ever seen.
//
// A URL is identified by its normalized form (see Normalize); registering
// the same URL twice — in any casing or query ordering that normalizes
// identically — always resolves to the same row. The registry is also the
// sole source of content-versioning truth: UpdateHash decides whether a new
// hash constitutes a content change.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/recolte/idgen"
	"github.com/hazyhaar/recolte/internal/store"
)

const urlColumns = `id, url, normalized_url, content_hash, previous_hash, status,
	error_message, first_seen, last_checked, last_content_change, process_count,
	content_version, metadata`

// Registry provides URL lifecycle tracking over the catalog store.
type Registry struct {
	st     *store.Store
	logger *slog.Logger
	newID  idgen.Generator
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the default UUIDv7 generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Registry) { r.newID = gen }
}

// New creates a Registry.
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{st: st, logger: logger, newID: idgen.Default}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register upserts a URL. If the normalized URL already exists, the existing
// row's metadata is merged, last_checked stamped, and process_count
// incremented; the existing id is returned. Otherwise a new row is inserted
// with status pending. Register never creates a second row for the same
// normalized URL.
func (r *Registry) Register(ctx context.Context, rawURL string, metadata map[string]any) (string, error) {
	normalized := Normalize(rawURL)
	now := time.Now().UnixMilli()

	existing, err := r.getByNormalized(ctx, normalized)
	if err != nil {
		return "", err
	}
	if existing != nil {
		merged, err := mergeMetadata(existing.MetadataJSON, metadata)
		if err != nil {
			return "", err
		}
		_, err = r.st.DB.ExecContext(ctx,
			`UPDATE urls SET last_checked = ?, process_count = process_count + 1, metadata = ?
			WHERE id = ?`, now, merged, existing.ID)
		if err != nil {
			return "", fmt.Errorf("registry: update on register: %w", err)
		}
		return existing.ID, nil
	}

	id := r.newID()
	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return "", err
	}
	_, err = r.st.DB.ExecContext(ctx,
		`INSERT INTO urls (id, url, normalized_url, status, first_seen, last_checked,
		process_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		id, rawURL, normalized, store.StatusPending, now, now, metaJSON)
	if err != nil {
		return "", fmt.Errorf("registry: insert: %w", err)
	}
	return id, nil
}

// Exists reports whether a URL is already registered.
func (r *Registry) Exists(ctx context.Context, rawURL string) (bool, error) {
	var n int
	err := r.st.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM urls WHERE normalized_url = ?`, Normalize(rawURL)).Scan(&n)
	return n > 0, err
}

// Get returns the record for a URL, or nil if unregistered.
func (r *Registry) Get(ctx context.Context, rawURL string) (*store.URLRecord, error) {
	return r.getByNormalized(ctx, Normalize(rawURL))
}

// GetByID returns the record with the given id, or nil.
func (r *Registry) GetByID(ctx context.Context, id string) (*store.URLRecord, error) {
	row := r.st.DB.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls WHERE id = ?`, id)
	return scanURL(row)
}

// GetByHash returns the most recently checked record holding the given
// content hash, or nil.
func (r *Registry) GetByHash(ctx context.Context, hash string) (*store.URLRecord, error) {
	row := r.st.DB.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls WHERE content_hash = ?
		ORDER BY last_checked DESC LIMIT 1`, hash)
	return scanURL(row)
}

// GetCompletedByHash returns a completed record holding the given hash whose
// id differs from excludeID, or nil. Used for duplicate-content detection.
func (r *Registry) GetCompletedByHash(ctx context.Context, hash, excludeID string) (*store.URLRecord, error) {
	if hash == "" {
		return nil, nil
	}
	row := r.st.DB.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls
		WHERE content_hash = ? AND status = ? AND id != ?
		ORDER BY last_checked DESC LIMIT 1`, hash, store.StatusCompleted, excludeID)
	return scanURL(row)
}

// UpdateStatus unconditionally sets status, error message, and last_checked.
func (r *Registry) UpdateStatus(ctx context.Context, id, status, errorMessage string) error {
	_, err := r.st.DB.ExecContext(ctx,
		`UPDATE urls SET status = ?, error_message = ?, last_checked = ? WHERE id = ?`,
		status, errorMessage, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("registry: update status: %w", err)
	}
	return nil
}

// UpdateHash records a freshly computed content hash. If it differs from the
// stored hash, the current hash shifts to previous_hash, last_content_change
// is stamped, and content_version increments. An identical hash only stamps
// last_checked. Runs in one transaction so concurrent updates cannot tear
// the shift.
func (r *Registry) UpdateHash(ctx context.Context, id, newHash string) error {
	return r.st.WithTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT content_hash FROM urls WHERE id = ?`, id).Scan(&current)
		if err != nil {
			return fmt.Errorf("registry: read hash: %w", err)
		}

		now := time.Now().UnixMilli()
		if current == newHash {
			_, err = tx.ExecContext(ctx,
				`UPDATE urls SET last_checked = ? WHERE id = ?`, now, id)
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE urls SET previous_hash = content_hash, content_hash = ?,
			last_content_change = ?, content_version = content_version + 1,
			last_checked = ? WHERE id = ?`,
			newHash, now, now, id)
		return err
	})
}

// Remove deletes a URL row explicitly. Knowledge entries and tag edges
// cascade; original file records keep their row with url_id set to null.
func (r *Registry) Remove(ctx context.Context, id string) error {
	_, err := r.st.DB.ExecContext(ctx, `DELETE FROM urls WHERE id = ?`, id)
	return err
}

// Filter narrows a List call. Zero values mean "no constraint".
type Filter struct {
	Status      string
	Since       int64 // Unix ms, matched against first_seen
	ContentType string
	Limit       int
	Offset      int
}

// List returns URL records matching the filter, most recently checked first.
// ContentType filters on the contentType key of the metadata document; the
// urls table intentionally has no content_type column.
func (r *Registry) List(ctx context.Context, f Filter) ([]*store.URLRecord, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Since > 0 {
		query += ` AND first_seen >= ?`
		args = append(args, f.Since)
	}
	if f.ContentType != "" {
		query += ` AND json_extract(metadata, '$.contentType') = ?`
		args = append(args, f.ContentType)
	}

	query += ` ORDER BY last_checked DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.st.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	var records []*store.URLRecord
	for rows.Next() {
		rec, err := scanURLRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Registry) getByNormalized(ctx context.Context, normalized string) (*store.URLRecord, error) {
	row := r.st.DB.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls WHERE normalized_url = ?`, normalized)
	return scanURL(row)
}

func scanURL(row *sql.Row) (*store.URLRecord, error) {
	var rec store.URLRecord
	var lastChange sql.NullInt64
	err := row.Scan(
		&rec.ID, &rec.URL, &rec.NormalizedURL, &rec.ContentHash, &rec.PreviousHash,
		&rec.Status, &rec.ErrorMessage, &rec.FirstSeen, &rec.LastChecked,
		&lastChange, &rec.ProcessCount, &rec.ContentVersion, &rec.MetadataJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan url: %w", err)
	}
	rec.LastContentChange = lastChange.Int64
	return &rec, nil
}

func scanURLRows(rows *sql.Rows) (*store.URLRecord, error) {
	var rec store.URLRecord
	var lastChange sql.NullInt64
	err := rows.Scan(
		&rec.ID, &rec.URL, &rec.NormalizedURL, &rec.ContentHash, &rec.PreviousHash,
		&rec.Status, &rec.ErrorMessage, &rec.FirstSeen, &rec.LastChecked,
		&lastChange, &rec.ProcessCount, &rec.ContentVersion, &rec.MetadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scan url: %w", err)
	}
	rec.LastContentChange = lastChange.Int64
	return &rec, nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("registry: encode metadata: %w", err)
	}
	return string(data), nil
}

// mergeMetadata overlays new keys onto the stored metadata document.
func mergeMetadata(existingJSON string, metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return existingJSON, nil
	}
	merged := make(map[string]any)
	if existingJSON != "" {
		if err := json.Unmarshal([]byte(existingJSON), &merged); err != nil {
			merged = make(map[string]any)
		}
	}
	for k, v := range metadata {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("registry: merge metadata: %w", err)
	}
	return string(data), nil
}
