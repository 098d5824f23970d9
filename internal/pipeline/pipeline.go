// CLAUDE:SUMMARY Five-stage ingestion orchestrator: Detect→Fetch→Process→Store→Index with dedup and short-circuits.
// Package pipeline coordinates the ingestion of one URL through five ordered
// stages: Detect → Fetch → Process → Store → Index.
//
// Every stage wraps its collaborator call; failures are tagged with the
// stage and a stable error code, and ProcessURL always resolves to a Result.
// The orchestrator owns deduplication policy (content-hash comparison
// against completed URLs) and transient in-flight bookkeeping.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/recolte/idgen"
	"github.com/hazyhaar/recolte/internal/blob"
	"github.com/hazyhaar/recolte/internal/faults"
	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/store"
	"github.com/hazyhaar/recolte/internal/tags"
)

// DefaultWindowSize is the batch admission window: at most this many
// ProcessURL calls are in flight at once, and windows never overlap.
const DefaultWindowSize = 5

// Deps are the orchestrator's collaborators. Registry, Tags, Detector,
// Fetcher, Processor, Knowledge, and Files are required; Change and
// Originals are optional capabilities resolved here, at construction.
type Deps struct {
	Registry  *registry.Registry
	Tags      *tags.Catalog
	Detector  Detector
	Fetcher   Fetcher
	Processor Processor
	Knowledge KnowledgeStore
	Files     FileStore
	Change    ChangeDetector       // optional
	Originals OriginalFileRecorder // optional
}

// Options tune one ProcessURL call.
type Options struct {
	ForceReprocess bool
	Metadata       map[string]any
	WindowSize     int // batch only; 0 means DefaultWindowSize
}

// Orchestrator drives URLs through the ingestion pipeline.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	newOp  idgen.Generator

	opsMu sync.Mutex
	ops   map[string]*Operation

	statsMu sync.Mutex
	stats   Stats
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithOperationIDs overrides the operation ID generator.
func WithOperationIDs(gen idgen.Generator) Option {
	return func(o *Orchestrator) { o.newOp = gen }
}

// New creates an Orchestrator.
func New(deps Deps, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		deps:   deps,
		logger: logger,
		newOp:  idgen.Prefixed("op_", idgen.ULID()),
		ops:    make(map[string]*Operation),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stats returns the running success/failure counters.
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

// ProcessURL drives one URL through the pipeline. It never returns a raw
// error: every outcome, including stage failures, is expressed as a Result.
func (o *Orchestrator) ProcessURL(ctx context.Context, rawURL string, opts Options) *Result {
	opID := o.newOp()
	start := time.Now()
	log := o.logger.With("url", rawURL, "operation", opID)

	o.trackOperation(opID, rawURL)
	defer o.clearOperation(opID)

	res := &Result{URL: rawURL, OperationID: opID}
	finish := func() *Result {
		res.Duration = time.Since(start)
		return res
	}

	// Detect.
	o.setStage(opID, faults.StageDetect)
	if !o.deps.Detector.CanHandle(rawURL) {
		return finish().fail(o, "", faults.New(faults.CodeUnsupportedType, faults.StageDetect,
			fmt.Sprintf("no classifier accepts %q", rawURL)))
	}
	detection, err := o.deps.Detector.Detect(ctx, rawURL)
	if err != nil {
		return finish().fail(o, "", faults.Wrap(faults.CodeUnsupportedType, faults.StageDetect, err))
	}
	res.ContentType = detection.Type

	// A detected type no processor accepts is unsupported: refuse here,
	// before spending a fetch on content nothing can extract.
	if !o.deps.Processor.CanProcess(detection.Type) {
		return finish().fail(o, "", faults.New(faults.CodeUnsupportedType, faults.StageDetect,
			fmt.Sprintf("no processor for type %q", detection.Type)))
	}

	// Fetch.
	o.setStage(opID, faults.StageFetch)
	if !o.deps.Fetcher.CanFetch(rawURL) {
		return finish().fail(o, "", faults.New(faults.CodeFetchFailed, faults.StageFetch,
			fmt.Sprintf("no fetcher accepts %q", rawURL)))
	}
	fetched, err := o.deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return finish().fail(o, "", faults.Wrap(faults.ClassifyFetch(err.Error()), faults.StageFetch, err))
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(fetched.Content))
	res.ContentHash = hash

	// Change-detection short-circuit: unchanged content skips straight to
	// success without touching Store/Index. A detector failure is non-fatal
	// and treated as "changed".
	if o.deps.Change != nil && !opts.ForceReprocess {
		verdict, err := o.deps.Change.HasContentChanged(ctx, rawURL, hash)
		if err != nil {
			log.Warn("pipeline: change detection failed, assuming changed", "error", err)
		} else if verdict != nil && !verdict.Changed {
			log.Debug("pipeline: content unchanged, skipping")
			res.Success = true
			res.Skipped = true
			res.withMeta("skipped", true)
			res.withMeta("reason", "unchanged")
			o.count(func(s *Stats) { s.Processed++; s.Skipped++ })
			return finish()
		}
	}

	// Register the URL; from here on failures also mark the registry row.
	meta := mergeOptions(opts.Metadata, detection)
	urlID, err := o.deps.Registry.Register(ctx, rawURL, meta)
	if err != nil {
		return finish().fail(o, "", faults.Wrap(faults.CodeDatabaseError, faults.StageFetch, err))
	}
	res.URLID = urlID
	if err := o.deps.Registry.UpdateStatus(ctx, urlID, store.StatusProcessing, ""); err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeDatabaseError, faults.StageFetch, err))
	}

	// Process.
	o.setStage(opID, faults.StageProcess)
	processed, err := o.deps.Processor.Process(ctx, fetched.Content, detection.Type)
	if err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeProcessingFailed, faults.StageProcess, err))
	}

	// Duplicate content held by a different completed URL: record the URL as
	// known but skipped, and point the caller at the original.
	if dup, err := o.deps.Registry.GetCompletedByHash(ctx, hash, urlID); err == nil && dup != nil {
		log.Info("pipeline: duplicate content", "original_url", dup.URL)
		if err := o.deps.Registry.UpdateStatus(ctx, urlID, store.StatusSkipped, "duplicate content"); err != nil {
			log.Warn("pipeline: skipped-status write failed", "url_id", urlID, "error", err)
		}
		res.withMeta("duplicateOf", dup.URL)
		ferr := faults.New(faults.CodeDuplicateContent, faults.StageProcess,
			fmt.Sprintf("content already indexed for %s", dup.URL)).
			WithDetail("original_url", dup.URL)
		res.Error = ferr
		res.Recovery = faults.Recommend(ferr.Code, ferr.Message)
		o.count(func(s *Stats) { s.Processed++; s.Skipped++ })
		return finish()
	}

	// Record the hash (version bump happens inside the registry) and notify
	// the change detector, both before Store so a later failure still leaves
	// accurate change history.
	if err := o.deps.Registry.UpdateHash(ctx, urlID, hash); err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeDatabaseError, faults.StageProcess, err))
	}
	if o.deps.Change != nil {
		if err := o.deps.Change.RecordContentProcessed(ctx, rawURL, hash); err != nil {
			log.Warn("pipeline: change detector record failed", "error", err)
		}
	}

	// Store.
	o.setStage(opID, faults.StageStore)
	mimeType := fetched.MimeType
	if mimeType == "" {
		mimeType = detection.MimeType
	}
	filename := deriveFilename(rawURL, mimeType)
	filePath, err := o.deps.Files.Store(ctx, fetched.Content, filename)
	if err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeStorageFailed, faults.StageStore, err))
	}
	res.FilePath = filePath

	if o.deps.Originals != nil {
		_, err := o.deps.Originals.RecordOriginalFile(ctx, &store.OriginalFile{
			ID:          idgen.New(),
			URLID:       urlID,
			URL:         rawURL,
			FilePath:    filePath,
			MimeType:    mimeType,
			Size:        int64(len(fetched.Content)),
			Checksum:    hash,
			ScraperUsed: detection.Type,
		})
		if err != nil {
			log.Warn("pipeline: original file untracked", "error", err)
		}
	}

	// Index.
	o.setStage(opID, faults.StageIndex)
	title := processed.Title
	if title == "" {
		title = deriveTitle(rawURL)
	}
	res.Title = title

	entry := &store.KnowledgeEntry{
		ID:           idgen.New(),
		URLID:        urlID,
		URL:          rawURL,
		Title:        title,
		ContentType:  detection.Type,
		Text:         processed.Text,
		MetadataJSON: encodeEntryMetadata(detection, processed),
		TagsJSON:     encodeTags(deriveTags(detection, mimeType, processed.Tags)),
		Size:         int64(len(fetched.Content)),
		Checksum:     hash,
	}
	knowledgeID, err := o.deps.Knowledge.Store(ctx, entry)
	if err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeStorageFailed, faults.StageIndex, err))
	}
	res.KnowledgeID = knowledgeID

	if err := o.deps.Registry.UpdateStatus(ctx, urlID, store.StatusCompleted, ""); err != nil {
		return finish().fail(o, urlID, faults.Wrap(faults.CodeDatabaseError, faults.StageIndex, err))
	}

	res.Success = true
	o.count(func(s *Stats) { s.Processed++; s.Succeeded++ })
	log.Info("pipeline: completed", "knowledge_id", knowledgeID, "hash", hash[:12])
	return finish()
}

// fail finalizes a failure Result: counters, registry status, failedAt
// metadata, and the recommended recovery.
func (r *Result) fail(o *Orchestrator, urlID string, ferr *faults.Error) *Result {
	r.Error = ferr
	r.Recovery = faults.Recommend(ferr.Code, ferr.Message)
	r.withMeta("failedAt", string(ferr.Stage))
	if urlID != "" {
		// Best effort: the failure result stands even if this write fails.
		if err := o.deps.Registry.UpdateStatus(context.Background(), urlID, store.StatusFailed, ferr.Message); err != nil {
			o.logger.Warn("pipeline: failed-status write failed", "url_id", urlID, "error", err)
		}
	}
	o.count(func(s *Stats) { s.Processed++; s.Failed++ })
	o.logger.Warn("pipeline: stage failed",
		"url", r.URL, "stage", ferr.Stage, "code", ferr.Code, "error", ferr.Message)
	return r
}

func (o *Orchestrator) count(fn func(*Stats)) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	fn(&o.stats)
}

// mergeOptions folds the detection verdict into caller metadata so List can
// later filter on contentType.
func mergeOptions(callerMeta map[string]any, detection *Detection) map[string]any {
	meta := make(map[string]any, len(callerMeta)+2)
	for k, v := range callerMeta {
		meta[k] = v
	}
	meta["contentType"] = detection.Type
	if detection.MimeType != "" {
		meta["mimeType"] = detection.MimeType
	}
	return meta
}

// deriveFilename builds a storage filename from the URL path, falling back
// to a timestamped name, with the extension inferred from the MIME type when
// the path has none. Both segments are sanitized: URL paths are attacker
// controlled and the result lands on disk.
func deriveFilename(rawURL, mimeType string) string {
	parsed, err := url.Parse(rawURL)
	name := ""
	host := "unknown"
	if err == nil {
		if h := strings.ToLower(parsed.Hostname()); h != "" {
			host = h
		}
		name = path.Base(strings.TrimRight(parsed.Path, "/"))
		if name == "." || name == "/" {
			name = ""
		}
	}
	if name == "" {
		name = fmt.Sprintf("page-%d", time.Now().UnixMilli())
	}
	name = blob.SanitizeName(name)
	if path.Ext(name) == "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			name += pickExtension(exts)
		} else {
			name += ".bin"
		}
	}
	return blob.SanitizeName(host) + "/" + name
}

// pickExtension prefers conventional extensions over mime package ordering.
func pickExtension(exts []string) string {
	for _, preferred := range []string{".html", ".txt", ".md", ".pdf", ".json", ".xml"} {
		for _, e := range exts {
			if e == preferred {
				return e
			}
		}
	}
	return exts[0]
}

// deriveTitle falls back to the last non-empty URL path segment, or the host.
func deriveTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return parsed.Hostname()
}

// deriveTags builds the default tag list for an entry: detected type, host,
// MIME top-level category, plus any processor-suggested tags. Duplicates are
// dropped, order preserved.
func deriveTags(detection *Detection, mimeType string, extra []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	add(detection.Type)
	if detection.Metadata != nil {
		add(detection.Metadata["host"])
	}
	if top, _, ok := strings.Cut(mimeType, "/"); ok {
		add(top)
	}
	for _, t := range extra {
		add(t)
	}
	return out
}

func encodeTags(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%q", n))
	}
	b.WriteByte(']')
	return b.String()
}

func encodeEntryMetadata(detection *Detection, processed *ProcessOutput) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	write := func(k, v string) {
		if v == "" {
			return
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(fmt.Sprintf("%q:%q", k, v))
	}
	write("detectedType", detection.Type)
	write("mimeType", detection.MimeType)
	for k, v := range processed.Metadata {
		write(k, v)
	}
	b.WriteByte('}')
	return b.String()
}
