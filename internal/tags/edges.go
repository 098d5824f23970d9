package tags

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddTagsToURL attaches tags to a URL. Additions are insert-or-ignore, so
// re-adding an existing edge is a no-op.
func (c *Catalog) AddTagsToURL(ctx context.Context, urlID string, tagIDs []string) error {
	now := time.Now().UnixMilli()
	for _, tagID := range tagIDs {
		_, err := c.st.DB.ExecContext(ctx,
			`INSERT OR IGNORE INTO url_tags (url_id, tag_id, created_at) VALUES (?, ?, ?)`,
			urlID, tagID, now)
		if err != nil {
			return fmt.Errorf("tags: add edge: %w", err)
		}
	}
	return nil
}

// RemoveTagsFromURL detaches the given tags from a URL.
func (c *Catalog) RemoveTagsFromURL(ctx context.Context, urlID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		_, err := c.st.DB.ExecContext(ctx,
			`DELETE FROM url_tags WHERE url_id = ? AND tag_id = ?`, urlID, tagID)
		if err != nil {
			return fmt.Errorf("tags: remove edge: %w", err)
		}
	}
	return nil
}

// SetURLTags replaces a URL's full tag set atomically: clear then re-add in
// one transaction, rolled back wholesale on any failure.
func (c *Catalog) SetURLTags(ctx context.Context, urlID string, tagIDs []string) error {
	now := time.Now().UnixMilli()
	return c.st.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM url_tags WHERE url_id = ?`, urlID); err != nil {
			return fmt.Errorf("tags: clear edges: %w", err)
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO url_tags (url_id, tag_id, created_at) VALUES (?, ?, ?)`,
				urlID, tagID, now); err != nil {
				return fmt.Errorf("tags: set edge: %w", err)
			}
		}
		return nil
	})
}

// TagsForURL returns the tags attached to a URL, ordered by name.
func (c *Catalog) TagsForURL(ctx context.Context, urlID string) ([]*TagWithName, error) {
	rows, err := c.st.DB.QueryContext(ctx,
		`SELECT t.id, t.name FROM url_tags ut
		JOIN tags t ON t.id = ut.tag_id
		WHERE ut.url_id = ?
		ORDER BY t.name`, urlID)
	if err != nil {
		return nil, fmt.Errorf("tags: for url: %w", err)
	}
	defer rows.Close()

	var result []*TagWithName
	for rows.Next() {
		var t TagWithName
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

// TagWithName is the edge-join projection of a tag.
type TagWithName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// URLsWithTagNames returns the ids of URLs carrying the named tags.
// With requireAll, a URL qualifies only if it holds every requested tag:
// its edge count among the requested set must equal the set size. Without,
// any one of the names suffices (set union).
func (c *Catalog) URLsWithTagNames(ctx context.Context, names []string, requireAll bool) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(names)+1)
	for _, n := range names {
		args = append(args, n)
	}

	query := `SELECT ut.url_id FROM url_tags ut
		JOIN tags t ON t.id = ut.tag_id
		WHERE t.name IN (` + placeholders + `)
		GROUP BY ut.url_id`
	if requireAll {
		query += ` HAVING COUNT(DISTINCT t.id) = ?`
		args = append(args, len(names))
	}

	rows, err := c.st.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tags: urls with names: %w", err)
	}
	defer rows.Close()

	var urlIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		urlIDs = append(urlIDs, id)
	}
	return urlIDs, rows.Err()
}
