package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/recolte/dbopen"
	"github.com/hazyhaar/recolte/internal/faults"
	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/store"
	"github.com/hazyhaar/recolte/internal/tags"
)

// --- fake collaborators ---------------------------------------------------

type fakeDetector struct {
	reject bool
}

func (d *fakeDetector) CanHandle(url string) bool { return !d.reject }
func (d *fakeDetector) Detect(_ context.Context, url string) (*Detection, error) {
	return &Detection{Type: "web", MimeType: "text/html", Metadata: map[string]string{"host": "example.com"}}, nil
}

type fakeFetcher struct {
	content  []byte
	failWith string            // error message returned for every URL
	perURL   map[string][]byte // overrides content per URL
	panicOn  string            // URL that triggers a panic
	calls    atomic.Int64
}

func (f *fakeFetcher) CanFetch(url string) bool { return true }
func (f *fakeFetcher) Fetch(_ context.Context, url string) (*FetchResult, error) {
	f.calls.Add(1)
	if f.panicOn != "" && url == f.panicOn {
		panic("fetcher blew up")
	}
	if f.failWith != "" {
		return nil, errors.New(f.failWith)
	}
	content := f.content
	if c, ok := f.perURL[url]; ok {
		content = c
	}
	return &FetchResult{Content: content, MimeType: "text/html", Size: int64(len(content))}, nil
}

type fakeProcessor struct {
	title   string
	fail    bool
	decline bool // CanProcess refuses every type
}

func (p *fakeProcessor) CanProcess(contentType string) bool { return !p.decline }
func (p *fakeProcessor) Process(_ context.Context, content []byte, _ string) (*ProcessOutput, error) {
	if p.fail {
		return nil, errors.New("mangled markup")
	}
	return &ProcessOutput{Title: p.title, Text: string(content)}, nil
}

type fakeKnowledge struct {
	mu      sync.Mutex
	entries map[string]*store.KnowledgeEntry
}

func (k *fakeKnowledge) Store(_ context.Context, e *store.KnowledgeEntry) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.entries == nil {
		k.entries = make(map[string]*store.KnowledgeEntry)
	}
	k.entries[e.ID] = e
	return e.ID, nil
}

func (k *fakeKnowledge) Retrieve(_ context.Context, id string) (*store.KnowledgeEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.entries[id], nil
}

type fakeFiles struct {
	mu    sync.Mutex
	saved []string
	fail  bool
}

func (f *fakeFiles) Store(_ context.Context, _ []byte, filename string) (string, error) {
	if f.fail {
		return "", errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, filename)
	return filename, nil
}

type fakeChange struct {
	changed  bool
	recorded []string
}

func (c *fakeChange) HasContentChanged(_ context.Context, _, _ string) (*ChangeVerdict, error) {
	return &ChangeVerdict{Changed: c.changed}, nil
}

func (c *fakeChange) RecordContentProcessed(_ context.Context, url, _ string) error {
	c.recorded = append(c.recorded, url)
	return nil
}

// --- harness ----------------------------------------------------------------

type harness struct {
	orch      *Orchestrator
	st        *store.Store
	registry  *registry.Registry
	tags      *tags.Catalog
	fetcher   *fakeFetcher
	processor *fakeProcessor
	knowledge *fakeKnowledge
	files     *fakeFiles
	detector  *fakeDetector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.New(dbopen.OpenMemory(t))
	require.NoError(t, err)

	h := &harness{
		st:        st,
		registry:  registry.New(st, nil),
		tags:      tags.New(st, nil),
		detector:  &fakeDetector{},
		fetcher:   &fakeFetcher{content: []byte("<h1>hello</h1>")},
		processor: &fakeProcessor{title: "Hello"},
		knowledge: &fakeKnowledge{},
		files:     &fakeFiles{},
	}
	h.orch = New(Deps{
		Registry:  h.registry,
		Tags:      h.tags,
		Detector:  h.detector,
		Fetcher:   h.fetcher,
		Processor: h.processor,
		Knowledge: h.knowledge,
		Files:     h.files,
	}, nil)
	return h
}

// --- tests --------------------------------------------------------------

func TestProcessURLSuccess(t *testing.T) {
	// WHAT: The happy path walks all five stages and lands on completed.
	h := newHarness(t)
	ctx := context.Background()

	res := h.orch.ProcessURL(ctx, "https://example.com/docs/intro", Options{})
	require.Nil(t, res.Error, "unexpected failure: %v", res.Error)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.URLID)
	assert.NotEmpty(t, res.KnowledgeID)
	assert.Equal(t, "Hello", res.Title)
	assert.True(t, strings.HasPrefix(res.OperationID, "op_"))

	wantHash := fmt.Sprintf("%x", sha256.Sum256([]byte("<h1>hello</h1>")))
	assert.Equal(t, wantHash, res.ContentHash)

	rec, err := h.registry.GetByID(ctx, res.URLID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, wantHash, rec.ContentHash)
	assert.Equal(t, 1, rec.ContentVersion)

	entry, _ := h.knowledge.Retrieve(ctx, res.KnowledgeID)
	require.NotNil(t, entry)
	assert.Equal(t, wantHash, entry.Checksum)
	assert.Contains(t, entry.TagsJSON, `"web"`)
	assert.Contains(t, entry.TagsJSON, `"example.com"`)

	stats := h.orch.Stats()
	assert.Equal(t, Stats{Processed: 1, Succeeded: 1}, stats)
}

func TestProcessURLUnsupported(t *testing.T) {
	// WHAT: A rejected URL fails at detect and never touches the registry.
	h := newHarness(t)
	h.detector.reject = true

	res := h.orch.ProcessURL(context.Background(), "ftp://example.com/x", Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, faults.CodeUnsupportedType, res.Error.Code)
	assert.Equal(t, faults.StageDetect, res.Error.Stage)
	assert.Equal(t, "detect", res.Metadata["failedAt"])
	assert.Empty(t, res.URLID)

	exists, err := h.registry.Exists(context.Background(), "ftp://example.com/x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProcessURLNoProcessorForType(t *testing.T) {
	// WHAT: A detected type no processor accepts is refused at detect,
	// before any bytes are fetched or the registry is touched.
	h := newHarness(t)
	h.processor.decline = true

	res := h.orch.ProcessURL(context.Background(), "https://example.com/chart.png", Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, faults.CodeUnsupportedType, res.Error.Code)
	assert.Equal(t, faults.StageDetect, res.Error.Stage)
	assert.Empty(t, res.URLID)
	assert.Zero(t, h.fetcher.calls.Load(), "fetch should never run for an unprocessable type")
}

func TestProcessURLFetchClassification(t *testing.T) {
	// WHAT: Fetch error text maps onto the taxonomy with a recovery verdict.
	cases := []struct {
		errMsg   string
		code     faults.Code
		recovery faults.Recovery
	}{
		{"rate limit: http 429", faults.CodeRateLimited, faults.RecoveryDelayAndRetry},
		{"access denied: http 403", faults.CodeAccessDenied, faults.RecoveryFail},
		{"request timeout after 30s", faults.CodeTimeout, faults.RecoveryRetry},
		{"not found: http 404", faults.CodeFetchFailed, faults.RecoveryFail},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			h := newHarness(t)
			h.fetcher.failWith = tc.errMsg

			res := h.orch.ProcessURL(context.Background(), "https://example.com/a", Options{})
			require.NotNil(t, res.Error)
			assert.Equal(t, tc.code, res.Error.Code)
			assert.Equal(t, faults.StageFetch, res.Error.Stage)
			assert.Equal(t, tc.recovery, res.Recovery)
		})
	}
}

func TestProcessURLProcessorFailure(t *testing.T) {
	// WHAT: A process-stage failure marks the registered URL failed with the
	// error message preserved.
	h := newHarness(t)
	h.processor.fail = true
	ctx := context.Background()

	res := h.orch.ProcessURL(ctx, "https://example.com/broken", Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, faults.CodeProcessingFailed, res.Error.Code)
	assert.Equal(t, "process", res.Metadata["failedAt"])
	require.NotEmpty(t, res.URLID)

	rec, err := h.registry.GetByID(ctx, res.URLID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "mangled markup")
}

func TestDuplicateContent(t *testing.T) {
	// WHAT: A second URL serving identical bytes is registered but skipped,
	// pointing back at the URL that owns the content.
	h := newHarness(t)
	ctx := context.Background()

	first := h.orch.ProcessURL(ctx, "https://example.com/one", Options{})
	require.True(t, first.Success)

	second := h.orch.ProcessURL(ctx, "https://mirror.example.com/two", Options{})
	require.NotNil(t, second.Error)
	assert.Equal(t, faults.CodeDuplicateContent, second.Error.Code)
	assert.Equal(t, "https://example.com/one", second.Metadata["duplicateOf"])
	assert.False(t, second.Success)

	rec, err := h.registry.GetByID(ctx, second.URLID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSkipped, rec.Status)

	// Only the first URL's payload reached file storage.
	assert.Len(t, h.files.saved, 1)
}

func TestDuplicateStatusWriteFailureLogged(t *testing.T) {
	// WHAT: When the skipped-status write fails on the duplicate path, the
	// duplicate result still stands and the failure is logged.
	h := newHarness(t)
	var logs bytes.Buffer
	h.orch.logger = slog.New(slog.NewTextHandler(&logs, nil))
	ctx := context.Background()

	first := h.orch.ProcessURL(ctx, "https://example.com/one", Options{})
	require.True(t, first.Success)

	_, err := h.st.DB.Exec(`CREATE TRIGGER block_skipped BEFORE UPDATE OF status ON urls
		WHEN NEW.status = 'skipped'
		BEGIN SELECT RAISE(ABORT, 'skipped status blocked'); END`)
	require.NoError(t, err)

	second := h.orch.ProcessURL(ctx, "https://mirror.example.com/two", Options{})
	require.NotNil(t, second.Error)
	assert.Equal(t, faults.CodeDuplicateContent, second.Error.Code)
	assert.Contains(t, logs.String(), "skipped-status write failed")
}

func TestChangeDetectorShortCircuit(t *testing.T) {
	// WHAT: An unchanged verdict skips before registration; ForceReprocess
	// overrides it.
	h := newHarness(t)
	change := &fakeChange{changed: false}
	h.orch.deps.Change = change
	ctx := context.Background()

	res := h.orch.ProcessURL(ctx, "https://example.com/static", Options{})
	require.Nil(t, res.Error)
	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Equal(t, "unchanged", res.Metadata["reason"])
	assert.Empty(t, res.URLID)
	assert.Empty(t, h.files.saved)

	forced := h.orch.ProcessURL(ctx, "https://example.com/static", Options{ForceReprocess: true})
	require.Nil(t, forced.Error)
	assert.False(t, forced.Skipped)
	assert.Equal(t, []string{"https://example.com/static"}, change.recorded)
}

func TestStoreStageFailure(t *testing.T) {
	h := newHarness(t)
	h.files.fail = true

	res := h.orch.ProcessURL(context.Background(), "https://example.com/x", Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, faults.CodeStorageFailed, res.Error.Code)
	assert.Equal(t, faults.StageStore, res.Error.Stage)
}

func TestBatchOrderAndIsolation(t *testing.T) {
	// WHAT: Batch results come back in input order, one per URL, and a
	// panicking worker only poisons its own slot.
	h := newHarness(t)
	h.fetcher.panicOn = "https://example.com/3"

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	}
	// Distinct bodies so dedup does not kick in across the batch.
	h.fetcher.perURL = map[string][]byte{}
	for _, u := range urls {
		h.fetcher.perURL[u] = []byte("body of " + u)
	}

	results := h.orch.ProcessURLs(context.Background(), urls, Options{WindowSize: 2})
	require.Len(t, results, len(urls))

	for i, res := range results {
		require.NotNil(t, res, "slot %d is nil", i)
		assert.Equal(t, urls[i], res.URL, "slot %d out of order", i)
	}

	require.NotNil(t, results[2].Error)
	assert.Equal(t, faults.CodeUnknown, results[2].Error.Code)
	assert.Contains(t, results[2].Error.Message, "panic")

	for _, i := range []int{0, 1, 3, 4} {
		assert.True(t, results[i].Success, "slot %d should have survived", i)
	}

	stats := h.orch.Stats()
	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 4, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
}

func TestBatchEmptyInput(t *testing.T) {
	h := newHarness(t)
	results := h.orch.ProcessURLs(context.Background(), nil, Options{})
	assert.Empty(t, results)
}

func TestProcessURLWithTags(t *testing.T) {
	// WHAT: Requested tags are created up front and attached after success.
	h := newHarness(t)
	ctx := context.Background()

	res := h.orch.ProcessURLWithTags(ctx, "https://example.com/tagged", []string{"docs", "api"}, Options{})
	require.Nil(t, res.Error)
	require.NotEmpty(t, res.URLID)
	assert.Equal(t, []string{"docs", "api"}, res.Metadata["tags"])

	attached, err := h.tags.TagsForURL(ctx, res.URLID)
	require.NoError(t, err)
	names := make([]string, 0, len(attached))
	for _, tag := range attached {
		names = append(names, tag.Name)
	}
	assert.ElementsMatch(t, []string{"docs", "api"}, names)
}

func TestProcessURLsByTag(t *testing.T) {
	// WHAT: Tag-driven reprocessing expands descendants and forces reprocess.
	h := newHarness(t)
	ctx := context.Background()

	parent, err := h.tags.Create(ctx, tags.CreateSpec{Name: "lang"})
	require.NoError(t, err)
	_, err = h.tags.Create(ctx, tags.CreateSpec{Name: "go", ParentID: parent.ID})
	require.NoError(t, err)

	res := h.orch.ProcessURLWithTags(ctx, "https://example.com/go-ref", []string{"go"}, Options{})
	require.Nil(t, res.Error)

	results, err := h.orch.ProcessURLsByTag(ctx, []string{"lang"}, true, false, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/go-ref", results[0].URL)
	// ForceReprocess means the rerun is not short-circuited even though the
	// content hash is unchanged; dedup against itself must not trigger.
	assert.True(t, results[0].Success)

	none, err := h.orch.ProcessURLsByTag(ctx, []string{"nosuch"}, false, false, Options{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOperationsLifecycle(t *testing.T) {
	// WHAT: In-flight bookkeeping is empty after completion, and CancelAll
	// reports how many records it dropped.
	h := newHarness(t)

	h.orch.ProcessURL(context.Background(), "https://example.com/op", Options{})
	assert.Empty(t, h.orch.Operations())

	h.orch.trackOperation("op_x", "https://example.com/held")
	h.orch.setStage("op_x", faults.StageFetch)
	ops := h.orch.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, 30, ops[0].Progress)

	assert.Equal(t, 1, h.orch.CancelAll())
	assert.Empty(t, h.orch.Operations())
}

func TestDeriveFilename(t *testing.T) {
	cases := []struct {
		url, mime, want string
	}{
		{"https://example.com/docs/guide.html", "text/html", "example.com/guide.html"},
		{"https://example.com/docs/guide", "text/html; charset=utf-8", "example.com/guide.html"},
		{"https://example.com/data", "application/json", "example.com/data.json"},
		// Path segments are sanitized before they become disk names.
		{"https://example.com/white paper (v2).pdf", "application/pdf", "example.com/white_paper__v2_.pdf"},
		{"https://example.com/%2e%2e", "text/html", "example.com/file.html"},
	}
	for _, tc := range cases {
		if got := deriveFilename(tc.url, tc.mime); got != tc.want {
			t.Errorf("deriveFilename(%q, %q) = %q, want %q", tc.url, tc.mime, got, tc.want)
		}
	}
	// Bare host falls back to a generated page name.
	got := deriveFilename("https://example.com/", "text/html")
	assert.True(t, strings.HasPrefix(got, "example.com/page-"))
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "intro", deriveTitle("https://example.com/docs/intro"))
	assert.Equal(t, "docs", deriveTitle("https://example.com/docs/"))
	assert.Equal(t, "example.com", deriveTitle("https://example.com"))
}
