package store

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/recolte/dbopen"
	"github.com/hazyhaar/recolte/idgen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st
}

// insertURLRow seeds a minimal urls row for foreign-key targets.
func insertURLRow(t *testing.T, s *Store, id, url string) {
	t.Helper()
	now := time.Now().UnixMilli()
	_, err := s.DB.Exec(
		`INSERT INTO urls (id, url, normalized_url, first_seen, last_checked)
		VALUES (?, ?, ?, ?, ?)`, id, url, url, now, now)
	if err != nil {
		t.Fatalf("insert url row: %v", err)
	}
}

func TestApplySchema(t *testing.T) {
	// WHAT: Schema creates all tables and is idempotent.
	// WHY: ApplySchema runs on every startup; a second run must be a no-op.
	st := openTestStore(t)
	if err := ApplySchema(st.DB); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	for _, table := range []string{"urls", "tags", "url_tags", "knowledge_entries", "original_files", "ingest_log"} {
		var name string
		err := st.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestUpsertKnowledgeEntryDedup(t *testing.T) {
	// WHAT: Re-storing the same (url, checksum) replaces instead of duplicating.
	// WHY: The (url_id, checksum) pair is the entry identity.
	st := openTestStore(t)
	ctx := context.Background()
	insertURLRow(t, st, "u1", "https://example.com/doc")

	e := &KnowledgeEntry{
		ID:       idgen.New(),
		URLID:    "u1",
		URL:      "https://example.com/doc",
		Title:    "First",
		Text:     "hello world",
		Checksum: "abc123",
		Size:     11,
	}
	id1, err := st.UpsertKnowledgeEntry(ctx, e)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	e2 := &KnowledgeEntry{
		ID:       idgen.New(), // different candidate id, same identity
		URLID:    "u1",
		URL:      "https://example.com/doc",
		Title:    "Second",
		Text:     "hello world again",
		Checksum: "abc123",
		Size:     17,
	}
	id2, err := st.UpsertKnowledgeEntry(ctx, e2)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %s vs %s", id1, id2)
	}

	var count int
	st.DB.QueryRow(`SELECT COUNT(*) FROM knowledge_entries`).Scan(&count)
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}

	got, err := st.GetKnowledgeEntry(ctx, id1)
	if err != nil || got == nil {
		t.Fatalf("get: %v, %v", got, err)
	}
	if got.Title != "Second" {
		t.Errorf("title = %q, want replaced value", got.Title)
	}
}

func TestKnowledgeCascadeOnURLDelete(t *testing.T) {
	// WHAT: Deleting a URL removes its knowledge entries via FK cascade.
	st := openTestStore(t)
	ctx := context.Background()
	insertURLRow(t, st, "u1", "https://example.com/a")

	if _, err := st.UpsertKnowledgeEntry(ctx, &KnowledgeEntry{
		ID: idgen.New(), URLID: "u1", URL: "https://example.com/a",
		Text: "x", Checksum: "h1",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := st.DB.Exec(`DELETE FROM urls WHERE id = 'u1'`); err != nil {
		t.Fatal(err)
	}
	var count int
	st.DB.QueryRow(`SELECT COUNT(*) FROM knowledge_entries`).Scan(&count)
	if count != 0 {
		t.Errorf("entries after cascade = %d, want 0", count)
	}
}

func TestSearchKnowledge(t *testing.T) {
	// WHAT: FTS5 finds entries by body text, and quoting defuses operators.
	st := openTestStore(t)
	ctx := context.Background()
	insertURLRow(t, st, "u1", "https://example.com/go")
	insertURLRow(t, st, "u2", "https://example.com/rust")

	st.UpsertKnowledgeEntry(ctx, &KnowledgeEntry{
		ID: idgen.New(), URLID: "u1", URL: "https://example.com/go",
		Title: "Go concurrency", Text: "goroutines and channels explained", Checksum: "h1",
	})
	st.UpsertKnowledgeEntry(ctx, &KnowledgeEntry{
		ID: idgen.New(), URLID: "u2", URL: "https://example.com/rust",
		Title: "Rust ownership", Text: "borrow checker rules", Checksum: "h2",
	})

	results, err := st.SearchKnowledge(ctx, "goroutines", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].URLID != "u1" {
		t.Fatalf("results = %+v, want one hit on u1", results)
	}

	// Operator characters must not blow up the MATCH expression.
	if _, err := st.SearchKnowledge(ctx, `"unbalanced AND (`, 10); err != nil {
		t.Errorf("quoted search errored: %v", err)
	}

	// Empty input is a no-op.
	if results, _ := st.SearchKnowledge(ctx, "   ", 10); results != nil {
		t.Errorf("empty query returned results")
	}
}

func TestOriginalFileLifecycle(t *testing.T) {
	// WHAT: Insert, touch, and sweep original file records.
	st := openTestStore(t)
	ctx := context.Background()
	insertURLRow(t, st, "u1", "https://example.com/a")

	f := &OriginalFile{
		ID:       idgen.New(),
		URLID:    "u1",
		URL:      "https://example.com/a",
		FilePath: "files/example.com/a.html",
		MimeType: "text/html",
		Size:     120,
		Checksum: "h1",
	}
	if err := st.InsertOriginalFile(ctx, f); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Same path again: update, not a constraint violation.
	if err := st.InsertOriginalFile(ctx, &OriginalFile{
		ID: idgen.New(), URLID: "u1", URL: "https://example.com/a",
		FilePath: "files/example.com/a.html", MimeType: "text/html", Checksum: "h2",
	}); err != nil {
		t.Fatalf("re-insert same path: %v", err)
	}
	var count int
	st.DB.QueryRow(`SELECT COUNT(*) FROM original_files`).Scan(&count)
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}

	got, err := st.GetOriginalFile(ctx, f.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v, %v", got, err)
	}
	if got.Status != FileActive {
		t.Errorf("status = %q, want active", got.Status)
	}

	if err := st.TouchOriginalFile(ctx, f.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = st.GetOriginalFile(ctx, f.ID)
	if got.AccessedAt == 0 {
		t.Error("accessed_at not stamped")
	}

	// Recently touched records survive the sweep.
	swept, err := st.SweepOriginalFiles(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 0 {
		t.Errorf("swept = %v, want none (recent access)", swept)
	}

	// Age the record past the cutoff: the sweep hands back its path and
	// retires the row.
	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	if _, err := st.DB.Exec(`UPDATE original_files SET created_at = ?, accessed_at = ? WHERE id = ?`,
		old, old, f.ID); err != nil {
		t.Fatalf("age record: %v", err)
	}
	swept, err = st.SweepOriginalFiles(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("sweep aged: %v", err)
	}
	if len(swept) != 1 || swept[0] != f.FilePath {
		t.Fatalf("swept = %v, want [%s]", swept, f.FilePath)
	}
	got, _ = st.GetOriginalFile(ctx, f.ID)
	if got.Status != FileDeleted {
		t.Errorf("status = %q, want deleted", got.Status)
	}
}

func TestIngestLog(t *testing.T) {
	// WHAT: Ingest attempts are recorded and listed newest first.
	st := openTestStore(t)
	ctx := context.Background()

	for i, status := range []string{"failed", "completed"} {
		err := st.InsertIngestLog(ctx, &IngestLogEntry{
			ID:          idgen.New(),
			URLID:       "u1",
			URL:         "https://example.com/a",
			Status:      status,
			AttemptedAt: time.Now().UnixMilli() - 1000 + int64(i),
		})
		if err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}

	entries, err := st.IngestHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Status != "completed" {
		t.Errorf("newest first violated: %+v", entries[0])
	}

	// A row inserted without a timestamp is stamped at write time, so it
	// still sorts ahead of the older rows.
	before := time.Now().UnixMilli()
	err = st.InsertIngestLog(ctx, &IngestLogEntry{
		ID:     idgen.New(),
		URLID:  "u1",
		URL:    "https://example.com/a",
		Status: "skipped",
	})
	if err != nil {
		t.Fatalf("insert unstamped: %v", err)
	}
	entries, err = st.IngestHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if entries[0].Status != "skipped" {
		t.Errorf("unstamped row not newest: %+v", entries[0])
	}
	if entries[0].AttemptedAt < before {
		t.Errorf("attempted_at = %d, want >= %d", entries[0].AttemptedAt, before)
	}
}

func TestStats(t *testing.T) {
	// WHAT: Aggregate counters reflect inserted rows.
	st := openTestStore(t)
	ctx := context.Background()
	insertURLRow(t, st, "u1", "https://example.com/a")
	insertURLRow(t, st, "u2", "https://example.com/b")

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.URLs != 2 {
		t.Errorf("urls = %d, want 2", stats.URLs)
	}
	if stats.URLsByStatus["pending"] != 2 {
		t.Errorf("pending = %d, want 2", stats.URLsByStatus["pending"])
	}
}
