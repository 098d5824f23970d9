package tags

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/recolte/dbopen"
	"github.com/hazyhaar/recolte/internal/store"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return New(st, nil)
}

func seedURL(t *testing.T, c *Catalog, id string) {
	t.Helper()
	now := time.Now().UnixMilli()
	_, err := c.st.DB.Exec(
		`INSERT INTO urls (id, url, normalized_url, first_seen, last_checked)
		VALUES (?, ?, ?, ?, ?)`, id, "https://"+id, "https://"+id, now, now)
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateTag(t *testing.T) {
	// WHAT: Create enforces name uniqueness and parent resolution.
	c := openTestCatalog(t)
	ctx := context.Background()

	docs, err := c.Create(ctx, CreateSpec{Name: "docs", Color: "#00f"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := c.Create(ctx, CreateSpec{Name: "docs"}); !IsCode(err, CodeTagExists) {
		t.Errorf("duplicate name: err = %v, want TAG_EXISTS", err)
	}
	if _, err := c.Create(ctx, CreateSpec{Name: "api", ParentID: "nope"}); !IsCode(err, CodeParentNotFound) {
		t.Errorf("bad parent: err = %v, want PARENT_NOT_FOUND", err)
	}

	api, err := c.Create(ctx, CreateSpec{Name: "api", ParentID: docs.ID})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if api.ParentID != docs.ID {
		t.Errorf("parent = %q", api.ParentID)
	}
}

func TestUpdateTagCycleRejection(t *testing.T) {
	// WHAT: Re-parenting a tag under its own descendant fails and changes nothing.
	// WHY: The parent graph must stay a forest.
	c := openTestCatalog(t)
	ctx := context.Background()

	a, _ := c.Create(ctx, CreateSpec{Name: "a"})
	b, _ := c.Create(ctx, CreateSpec{Name: "b", ParentID: a.ID})
	d, _ := c.Create(ctx, CreateSpec{Name: "d", ParentID: b.ID})

	// a under d (its own grandchild) is a cycle.
	if _, err := c.Update(ctx, a.ID, Patch{ParentID: &d.ID}); !IsCode(err, CodeCircularReference) {
		t.Fatalf("err = %v, want CIRCULAR_REFERENCE", err)
	}
	// Self-reference is rejected too.
	if _, err := c.Update(ctx, a.ID, Patch{ParentID: &a.ID}); !IsCode(err, CodeCircularReference) {
		t.Fatalf("self: err = %v, want CIRCULAR_REFERENCE", err)
	}

	// Hierarchy unchanged.
	got, _ := c.Get(ctx, a.ID)
	if got.ParentID != "" {
		t.Errorf("a.parent = %q after rejected moves", got.ParentID)
	}

	// Legitimate re-parent still works: d to root.
	root := ""
	if _, err := c.Update(ctx, d.ID, Patch{ParentID: &root}); err != nil {
		t.Fatalf("re-parent to root: %v", err)
	}
	got, _ = c.Get(ctx, d.ID)
	if got.ParentID != "" {
		t.Errorf("d.parent = %q, want root", got.ParentID)
	}
}

func TestUpdateTagRename(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	a, _ := c.Create(ctx, CreateSpec{Name: "a"})
	c.Create(ctx, CreateSpec{Name: "b"})

	newName := "b"
	if _, err := c.Update(ctx, a.ID, Patch{Name: &newName}); !IsCode(err, CodeTagExists) {
		t.Fatalf("rename onto taken name: %v", err)
	}
	// Renaming to its own name is fine.
	same := "a"
	if _, err := c.Update(ctx, a.ID, Patch{Name: &same}); err != nil {
		t.Fatalf("identity rename: %v", err)
	}

	fresh := "c"
	updated, err := c.Update(ctx, a.ID, Patch{Name: &fresh})
	if err != nil || updated.Name != "c" {
		t.Fatalf("rename: %v, %+v", err, updated)
	}
}

func TestDeleteTagPromotesChildren(t *testing.T) {
	// WHAT: deleteChildren=false promotes direct children to root.
	c := openTestCatalog(t)
	ctx := context.Background()

	parent, _ := c.Create(ctx, CreateSpec{Name: "parent"})
	c1, _ := c.Create(ctx, CreateSpec{Name: "c1", ParentID: parent.ID})
	c2, _ := c.Create(ctx, CreateSpec{Name: "c2", ParentID: parent.ID})

	if err := c.Delete(ctx, parent.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, id := range []string{c1.ID, c2.ID} {
		got, _ := c.Get(ctx, id)
		if got == nil {
			t.Fatalf("child %s deleted", id)
		}
		if got.ParentID != "" {
			t.Errorf("child %s parent = %q, want root", id, got.ParentID)
		}
	}
	if gone, _ := c.Get(ctx, parent.ID); gone != nil {
		t.Error("parent survived delete")
	}
}

func TestDeleteTagCascades(t *testing.T) {
	// WHAT: deleteChildren=true removes the whole subtree depth-first.
	c := openTestCatalog(t)
	ctx := context.Background()

	root, _ := c.Create(ctx, CreateSpec{Name: "root"})
	mid, _ := c.Create(ctx, CreateSpec{Name: "mid", ParentID: root.ID})
	leaf, _ := c.Create(ctx, CreateSpec{Name: "leaf", ParentID: mid.ID})
	other, _ := c.Create(ctx, CreateSpec{Name: "other"})

	if err := c.Delete(ctx, root.ID, true); err != nil {
		t.Fatalf("delete subtree: %v", err)
	}
	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		if got, _ := c.Get(ctx, id); got != nil {
			t.Errorf("tag %s survived subtree delete", id)
		}
	}
	if got, _ := c.Get(ctx, other.ID); got == nil {
		t.Error("unrelated tag deleted")
	}
}

func TestPath(t *testing.T) {
	// WHAT: Path returns root→leaf order and respects the depth cap.
	c := openTestCatalog(t)
	ctx := context.Background()

	a, _ := c.Create(ctx, CreateSpec{Name: "a"})
	b, _ := c.Create(ctx, CreateSpec{Name: "b", ParentID: a.ID})
	d, _ := c.Create(ctx, CreateSpec{Name: "d", ParentID: b.ID})

	path, err := c.Path(ctx, d.ID)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if len(path) != 3 || path[0].Name != "a" || path[2].Name != "d" {
		names := make([]string, len(path))
		for i, p := range path {
			names[i] = p.Name
		}
		t.Fatalf("path = %v, want [a b d]", names)
	}

	if _, err := c.Path(ctx, "missing"); !IsCode(err, CodeTagNotFound) {
		t.Errorf("missing tag: %v", err)
	}

	// Hand-written cycle (bypassing Update) must trip the depth cap.
	c.st.DB.Exec(`UPDATE tags SET parent_id = ? WHERE id = ?`, d.ID, a.ID)
	if _, err := c.Path(ctx, d.ID); !IsCode(err, CodePathTooDeep) {
		t.Errorf("cycle walk: err = %v, want TAG_PATH_TOO_DEEP", err)
	}
}

func TestEnsureTags(t *testing.T) {
	// WHAT: EnsureTags creates only the missing names, preserving input order.
	c := openTestCatalog(t)
	ctx := context.Background()

	ids, err := c.EnsureTags(ctx, []string{"docs", "api"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %d, want 2", len(ids))
	}

	ids2, err := c.EnsureTags(ctx, []string{"docs", "new"})
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(ids2) != 2 {
		t.Fatalf("ids2 = %d, want 2", len(ids2))
	}
	if ids2[0] != ids[0] {
		t.Errorf("docs id changed: %s vs %s", ids2[0], ids[0])
	}

	var count int
	c.st.DB.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&count)
	if count != 3 {
		t.Errorf("tags = %d, want 3 (docs, api, new)", count)
	}
}

func TestDescendants(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	a, _ := c.Create(ctx, CreateSpec{Name: "a"})
	b, _ := c.Create(ctx, CreateSpec{Name: "b", ParentID: a.ID})
	d, _ := c.Create(ctx, CreateSpec{Name: "d", ParentID: b.ID})
	c.Create(ctx, CreateSpec{Name: "e"})

	desc, err := c.Descendants(ctx, a.ID)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(desc) != 2 {
		t.Fatalf("descendants = %v, want [b d]", desc)
	}
	if desc[0] != b.ID || desc[1] != d.ID {
		t.Errorf("order = %v, want breadth-first [b d]", desc)
	}
}
