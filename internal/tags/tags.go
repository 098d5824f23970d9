// CLAUDE:SUMMARY Hierarchical tag catalog: CRUD with cycle prevention, path walking, idempotent EnsureTags.
// Package tags maintains the hierarchical tag catalog and its URL edges.
//
// Tags form a forest: each tag has at most one parent, and the parent graph
// is kept acyclic by checking the proposed ancestor chain on every re-parent.
package tags

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/recolte/idgen"
	"github.com/hazyhaar/recolte/internal/store"
)

// maxPathDepth caps ancestor walks so a corrupted hierarchy (a cycle written
// by hand outside this package) surfaces as TAG_PATH_TOO_DEEP instead of an
// infinite loop.
const maxPathDepth = 100

const tagColumns = `id, name, parent_id, description, color, created_at`

// Catalog provides tag CRUD and URL-tag edge operations.
type Catalog struct {
	st     *store.Store
	logger *slog.Logger
	newID  idgen.Generator
}

// Option customises a Catalog.
type Option func(*Catalog)

// WithIDGenerator overrides the default UUIDv7 generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(c *Catalog) { c.newID = gen }
}

// New creates a Catalog.
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{st: st, logger: logger, newID: idgen.Default}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSpec describes a tag to create.
type CreateSpec struct {
	Name        string
	ParentID    string
	Description string
	Color       string
}

// Create adds a tag. Fails with TAG_EXISTS if the name is taken and
// PARENT_NOT_FOUND if ParentID is supplied but unresolvable.
func (c *Catalog) Create(ctx context.Context, spec CreateSpec) (*store.Tag, error) {
	if spec.Name == "" {
		return nil, coded(CodeTagNotFound, "tag name must not be empty")
	}
	existing, err := c.GetByName(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, coded(CodeTagExists, "tag %q already exists", spec.Name)
	}
	if spec.ParentID != "" {
		parent, err := c.Get(ctx, spec.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, coded(CodeParentNotFound, "parent tag %q not found", spec.ParentID)
		}
	}

	tag := &store.Tag{
		ID:          c.newID(),
		Name:        spec.Name,
		ParentID:    spec.ParentID,
		Description: spec.Description,
		Color:       spec.Color,
		CreatedAt:   time.Now().UnixMilli(),
	}
	_, err = c.st.DB.ExecContext(ctx,
		`INSERT INTO tags (id, name, parent_id, description, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Name, nullIfEmpty(tag.ParentID), tag.Description, tag.Color, tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("tags: insert: %w", err)
	}
	return tag, nil
}

// Patch describes partial updates to a tag. Nil fields are left unchanged.
// Setting ParentID to a pointer to "" re-parents the tag to root.
type Patch struct {
	Name        *string
	ParentID    *string
	Description *string
	Color       *string
}

// Update applies a patch. Renaming checks name uniqueness excluding self;
// re-parenting walks the proposed parent's ancestor chain and fails with
// CIRCULAR_REFERENCE if the tag itself appears in it.
func (c *Catalog) Update(ctx context.Context, id string, patch Patch) (*store.Tag, error) {
	tag, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, coded(CodeTagNotFound, "tag %q not found", id)
	}

	if patch.Name != nil && *patch.Name != tag.Name {
		other, err := c.GetByName(ctx, *patch.Name)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, coded(CodeTagExists, "tag %q already exists", *patch.Name)
		}
		tag.Name = *patch.Name
	}

	if patch.ParentID != nil && *patch.ParentID != tag.ParentID {
		newParent := *patch.ParentID
		if newParent != "" {
			if newParent == id {
				return nil, coded(CodeCircularReference, "tag %q cannot be its own parent", id)
			}
			parent, err := c.Get(ctx, newParent)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return nil, coded(CodeParentNotFound, "parent tag %q not found", newParent)
			}
			ancestors, err := c.ancestorIDs(ctx, newParent)
			if err != nil {
				return nil, err
			}
			for _, a := range ancestors {
				if a == id {
					return nil, coded(CodeCircularReference,
						"moving tag %q under %q would create a cycle", id, newParent)
				}
			}
		}
		tag.ParentID = newParent
	}

	if patch.Description != nil {
		tag.Description = *patch.Description
	}
	if patch.Color != nil {
		tag.Color = *patch.Color
	}

	_, err = c.st.DB.ExecContext(ctx,
		`UPDATE tags SET name = ?, parent_id = ?, description = ?, color = ? WHERE id = ?`,
		tag.Name, nullIfEmpty(tag.ParentID), tag.Description, tag.Color, id)
	if err != nil {
		return nil, fmt.Errorf("tags: update: %w", err)
	}
	return tag, nil
}

// Delete removes a tag. With deleteChildren=false, direct children are
// promoted to root first; with true, the whole subtree is removed
// depth-first. Edge rows cascade either way.
func (c *Catalog) Delete(ctx context.Context, id string, deleteChildren bool) error {
	tag, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if tag == nil {
		return coded(CodeTagNotFound, "tag %q not found", id)
	}

	return c.st.WithTx(ctx, func(tx *sql.Tx) error {
		if deleteChildren {
			return c.deleteSubtree(ctx, tx, id, 0)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tags SET parent_id = NULL WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("tags: promote children: %w", err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		return err
	})
}

func (c *Catalog) deleteSubtree(ctx context.Context, tx *sql.Tx, id string, depth int) error {
	if depth > maxPathDepth {
		return coded(CodePathTooDeep, "tag subtree deeper than %d at %q", maxPathDepth, id)
	}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM tags WHERE parent_id = ?`, id)
	if err != nil {
		return err
	}
	var children []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			rows.Close()
			return err
		}
		children = append(children, child)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, child := range children {
		if err := c.deleteSubtree(ctx, tx, child, depth+1); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	return err
}

// Get retrieves a tag by ID. Returns nil, nil if absent.
func (c *Catalog) Get(ctx context.Context, id string) (*store.Tag, error) {
	row := c.st.DB.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

// GetByName retrieves a tag by its unique name. Returns nil, nil if absent.
func (c *Catalog) GetByName(ctx context.Context, name string) (*store.Tag, error) {
	row := c.st.DB.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE name = ?`, name)
	return scanTag(row)
}

// ListFilter narrows a List call.
type ListFilter struct {
	ParentID string // "" lists all; "root" would be ambiguous, use RootsOnly
	RootsOnly bool
	Limit    int
}

// List returns tags matching the filter, ordered by name.
func (c *Catalog) List(ctx context.Context, f ListFilter) ([]*store.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags`
	var args []any
	switch {
	case f.RootsOnly:
		query += ` WHERE parent_id IS NULL`
	case f.ParentID != "":
		query += ` WHERE parent_id = ?`
		args = append(args, f.ParentID)
	}
	query += ` ORDER BY name`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.st.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tags: list: %w", err)
	}
	defer rows.Close()

	var result []*store.Tag
	for rows.Next() {
		t, err := scanTagRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Path walks parent references from the given tag to its root and returns
// the chain in root→leaf order. A walk deeper than maxPathDepth fails with
// TAG_PATH_TOO_DEEP rather than looping forever.
func (c *Catalog) Path(ctx context.Context, id string) ([]*store.Tag, error) {
	var path []*store.Tag
	current := id
	for depth := 0; current != ""; depth++ {
		if depth > maxPathDepth {
			return nil, coded(CodePathTooDeep, "tag path deeper than %d at %q", maxPathDepth, id)
		}
		tag, err := c.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			if depth == 0 {
				return nil, coded(CodeTagNotFound, "tag %q not found", id)
			}
			break // dangling parent reference: stop at the last known node
		}
		path = append([]*store.Tag{tag}, path...)
		current = tag.ParentID
	}
	return path, nil
}

// Descendants returns the ids of every tag below the given one, breadth-first.
func (c *Catalog) Descendants(ctx context.Context, id string) ([]string, error) {
	var result []string
	frontier := []string{id}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth > maxPathDepth {
			return nil, coded(CodePathTooDeep, "tag subtree deeper than %d at %q", maxPathDepth, id)
		}
		var next []string
		for _, parent := range frontier {
			rows, err := c.st.DB.QueryContext(ctx, `SELECT id FROM tags WHERE parent_id = ?`, parent)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var child string
				if err := rows.Scan(&child); err != nil {
					rows.Close()
					return nil, err
				}
				next = append(next, child)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, err
			}
		}
		result = append(result, next...)
		frontier = next
	}
	return result, nil
}

// EnsureTags idempotently creates any missing tags by name and returns the
// ids of all requested tags, preserving input order.
func (c *Catalog) EnsureTags(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		tag, err := c.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			tag, err = c.Create(ctx, CreateSpec{Name: name})
			if err != nil {
				// Lost a race with a concurrent Create: re-read.
				if IsCode(err, CodeTagExists) {
					tag, err = c.GetByName(ctx, name)
				}
				if err != nil || tag == nil {
					return nil, err
				}
			}
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// ancestorIDs walks parent references from id upward (excluding id itself).
func (c *Catalog) ancestorIDs(ctx context.Context, id string) ([]string, error) {
	var chain []string
	current := id
	for depth := 0; ; depth++ {
		if depth > maxPathDepth {
			return nil, coded(CodePathTooDeep, "ancestor chain deeper than %d at %q", maxPathDepth, id)
		}
		var parent sql.NullString
		err := c.st.DB.QueryRowContext(ctx,
			`SELECT parent_id FROM tags WHERE id = ?`, current).Scan(&parent)
		if err != nil {
			if err == sql.ErrNoRows {
				return chain, nil
			}
			return nil, err
		}
		if !parent.Valid || parent.String == "" {
			return chain, nil
		}
		chain = append(chain, parent.String)
		current = parent.String
	}
}

func scanTag(row *sql.Row) (*store.Tag, error) {
	var t store.Tag
	var parent sql.NullString
	err := row.Scan(&t.ID, &t.Name, &parent, &t.Description, &t.Color, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	t.ParentID = parent.String
	return &t, nil
}

func scanTagRows(rows *sql.Rows) (*store.Tag, error) {
	var t store.Tag
	var parent sql.NullString
	err := rows.Scan(&t.ID, &t.Name, &parent, &t.Description, &t.Color, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	t.ParentID = parent.String
	return &t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
