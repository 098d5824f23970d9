// CLAUDE:SUMMARY Main Service facade: wires store, registry, tags, collaborators, and pipeline; exposes all business methods.
// Package recolte ingests content from URLs into a local, searchable catalog.
//
// A Service owns one SQLite catalog plus a directory of original payloads.
// URLs are deduplicated by normalized form, content is deduplicated by
// SHA-256 hash, extracted text is indexed for full-text search, and tags
// organize everything into a hierarchy.
package recolte

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/recolte/internal/blob"
	"github.com/hazyhaar/recolte/internal/classify"
	"github.com/hazyhaar/recolte/internal/extract"
	"github.com/hazyhaar/recolte/internal/fetchhttp"
	"github.com/hazyhaar/recolte/internal/pipeline"
	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/store"
	"github.com/hazyhaar/recolte/internal/tags"
)

// Service is the main recolte orchestrator.
type Service struct {
	store    *store.Store
	registry *registry.Registry
	tags     *tags.Catalog
	orch     *pipeline.Orchestrator
	blobs    *blob.Store
	logger   *slog.Logger
	config   *Config

	urlValidator func(string) error
	detector     pipeline.Detector
	fetcher      pipeline.Fetcher
	processor    pipeline.Processor
	ownsStore    bool
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithURLValidator overrides URL validation (default: fetchhttp.ValidateURL).
// Use in tests with httptest servers that listen on loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// WithDetector replaces the default URL classifier.
func WithDetector(d pipeline.Detector) ServiceOption {
	return func(svc *Service) { svc.detector = d }
}

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f pipeline.Fetcher) ServiceOption {
	return func(svc *Service) { svc.fetcher = f }
}

// WithProcessor replaces the default content processor set.
func WithProcessor(p pipeline.Processor) ServiceOption {
	return func(svc *Service) { svc.processor = p }
}

// New creates a recolte Service, opening (or creating) the catalog at
// cfg.DatabasePath.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	svc, err := fromStore(st, cfg, logger, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	svc.ownsStore = true
	return svc, nil
}

// NewWithStore creates a Service over an already-opened store. The caller
// keeps ownership of the store; Close will not close it.
func NewWithStore(st *store.Store, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return fromStore(st, cfg, logger, opts...)
}

func fromStore(st *store.Store, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	svc := &Service{
		store:        st,
		registry:     registry.New(st, logger),
		tags:         tags.New(st, logger),
		blobs:        blob.NewStore(cfg.FilesDir),
		logger:       logger,
		config:       cfg,
		urlValidator: fetchhttp.ValidateURL,
	}

	// Apply options that shape collaborator construction first.
	for _, opt := range opts {
		opt(svc)
	}

	if svc.detector == nil {
		svc.detector = detectorAdapter{d: classify.New()}
	}
	if svc.fetcher == nil {
		svc.fetcher = fetcherAdapter{f: fetchhttp.New(cfg.Fetch.toFetcher(svc.urlValidator))}
	}
	if svc.processor == nil {
		svc.processor = processorAdapter{set: extract.NewSet()}
	}

	svc.orch = pipeline.New(pipeline.Deps{
		Registry:  svc.registry,
		Tags:      svc.tags,
		Detector:  svc.detector,
		Fetcher:   svc.fetcher,
		Processor: svc.processor,
		Knowledge: knowledgeAdapter{st: st},
		Files:     fileAdapter{blobs: svc.blobs},
		Change:    registryChangeDetector{reg: svc.registry},
		Originals: originalsAdapter{st: st},
	}, logger)

	return svc, nil
}

// Close releases the service. The catalog database is closed only when the
// Service opened it itself.
func (svc *Service) Close() error {
	if svc.ownsStore {
		return svc.store.Close()
	}
	return nil
}

// --- Ingestion ---

// ProcessURL runs one URL through the full pipeline and logs the attempt.
func (svc *Service) ProcessURL(ctx context.Context, url string, opts Options) *Result {
	res := svc.orch.ProcessURL(ctx, url, opts)
	svc.recordIngest(ctx, res)
	return res
}

// ProcessURLs runs a batch through the pipeline in fixed windows. Results
// come back in input order, one per URL.
func (svc *Service) ProcessURLs(ctx context.Context, urls []string, opts Options) []*Result {
	if opts.WindowSize <= 0 {
		opts.WindowSize = svc.config.WindowSize
	}
	results := svc.orch.ProcessURLs(ctx, urls, opts)
	for _, res := range results {
		svc.recordIngest(ctx, res)
	}
	return results
}

// ProcessURLWithTags processes one URL and attaches the named tags,
// creating them as needed.
func (svc *Service) ProcessURLWithTags(ctx context.Context, url string, tagNames []string, opts Options) *Result {
	res := svc.orch.ProcessURLWithTags(ctx, url, tagNames, opts)
	svc.recordIngest(ctx, res)
	return res
}

// ProcessURLsByTag reprocesses all URLs carrying the named tags.
func (svc *Service) ProcessURLsByTag(ctx context.Context, tagNames []string, includeDescendants, requireAll bool, opts Options) ([]*Result, error) {
	results, err := svc.orch.ProcessURLsByTag(ctx, tagNames, includeDescendants, requireAll, opts)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		svc.recordIngest(ctx, res)
	}
	return results, nil
}

// --- URL registry ---

// AddURL registers a URL without processing it. Re-adding a known URL is
// idempotent and returns the existing id.
func (svc *Service) AddURL(ctx context.Context, url string, metadata map[string]any) (string, error) {
	if err := svc.urlValidator(url); err != nil {
		return "", err
	}
	return svc.registry.Register(ctx, url, metadata)
}

// GetURL returns the registry record for a URL, nil if unknown.
func (svc *Service) GetURL(ctx context.Context, url string) (*store.URLRecord, error) {
	return svc.registry.Get(ctx, url)
}

// GetURLByID returns the registry record by id, nil if unknown.
func (svc *Service) GetURLByID(ctx context.Context, id string) (*store.URLRecord, error) {
	return svc.registry.GetByID(ctx, id)
}

// ListURLs returns registry records matching the filter.
func (svc *Service) ListURLs(ctx context.Context, f registry.Filter) ([]*store.URLRecord, error) {
	return svc.registry.List(ctx, f)
}

// RemoveURL deletes a URL and everything hanging off it (entries, edges,
// file records) through foreign key cascades.
func (svc *Service) RemoveURL(ctx context.Context, id string) error {
	return svc.registry.Remove(ctx, id)
}

// PurgeFailed deletes every URL stuck in failed status, cascading to its
// entries, edges, and file records. Returns how many URLs were removed.
func (svc *Service) PurgeFailed(ctx context.Context) (int, error) {
	removed := 0
	for {
		failed, err := svc.registry.List(ctx, registry.Filter{Status: store.StatusFailed, Limit: 200})
		if err != nil {
			return removed, err
		}
		if len(failed) == 0 {
			return removed, nil
		}
		for _, rec := range failed {
			if err := svc.registry.Remove(ctx, rec.ID); err != nil {
				return removed, err
			}
			removed++
		}
	}
}

// IngestHistory returns past pipeline attempts for a URL, newest first.
func (svc *Service) IngestHistory(ctx context.Context, urlID string, limit int) ([]*store.IngestLogEntry, error) {
	return svc.store.IngestHistory(ctx, urlID, limit)
}

// --- Tags ---

// CreateTag adds a tag to the hierarchy.
func (svc *Service) CreateTag(ctx context.Context, spec tags.CreateSpec) (*store.Tag, error) {
	return svc.tags.Create(ctx, spec)
}

// UpdateTag renames, re-parents, or redecorates a tag.
func (svc *Service) UpdateTag(ctx context.Context, id string, patch tags.Patch) (*store.Tag, error) {
	return svc.tags.Update(ctx, id, patch)
}

// DeleteTag removes a tag; deleteChildren picks cascade over promotion.
func (svc *Service) DeleteTag(ctx context.Context, id string, deleteChildren bool) error {
	return svc.tags.Delete(ctx, id, deleteChildren)
}

// GetTag returns a tag by id, nil if unknown.
func (svc *Service) GetTag(ctx context.Context, id string) (*store.Tag, error) {
	return svc.tags.Get(ctx, id)
}

// ListTags returns tags matching the filter, ordered by name.
func (svc *Service) ListTags(ctx context.Context, f tags.ListFilter) ([]*store.Tag, error) {
	return svc.tags.List(ctx, f)
}

// TagPath returns the root-to-leaf chain for a tag.
func (svc *Service) TagPath(ctx context.Context, id string) ([]*store.Tag, error) {
	return svc.tags.Path(ctx, id)
}

// EnsureTags resolves names to ids, creating missing tags as roots.
func (svc *Service) EnsureTags(ctx context.Context, names []string) ([]string, error) {
	return svc.tags.EnsureTags(ctx, names)
}

// TagURL attaches tags to a URL. Already-attached tags are ignored.
func (svc *Service) TagURL(ctx context.Context, urlID string, tagIDs []string) error {
	return svc.tags.AddTagsToURL(ctx, urlID, tagIDs)
}

// UntagURL detaches tags from a URL.
func (svc *Service) UntagURL(ctx context.Context, urlID string, tagIDs []string) error {
	return svc.tags.RemoveTagsFromURL(ctx, urlID, tagIDs)
}

// TagsForURL returns the tags attached to a URL, ordered by name.
func (svc *Service) TagsForURL(ctx context.Context, urlID string) ([]*tags.TagWithName, error) {
	return svc.tags.TagsForURL(ctx, urlID)
}

// --- Knowledge and search ---

// Search performs FTS5 search over indexed knowledge entries.
func (svc *Service) Search(ctx context.Context, query string, limit int) ([]*store.SearchResult, error) {
	return svc.store.SearchKnowledge(ctx, query, limit)
}

// GetKnowledgeEntry returns one indexed entry, nil if unknown.
func (svc *Service) GetKnowledgeEntry(ctx context.Context, id string) (*store.KnowledgeEntry, error) {
	return svc.store.GetKnowledgeEntry(ctx, id)
}

// ListKnowledgeEntries returns entries for a URL, newest first.
func (svc *Service) ListKnowledgeEntries(ctx context.Context, urlID string, limit int) ([]*store.KnowledgeEntry, error) {
	return svc.store.ListKnowledgeEntries(ctx, urlID, limit)
}

// --- Original files ---

// OriginalFiles lists tracked raw payloads for a URL.
func (svc *Service) OriginalFiles(ctx context.Context, urlID string, limit int) ([]*store.OriginalFile, error) {
	return svc.store.ListOriginalFiles(ctx, urlID, limit)
}

// OpenOriginalFile reads a payload back from disk and stamps its access time.
func (svc *Service) OpenOriginalFile(ctx context.Context, id string) ([]byte, error) {
	f, err := svc.store.GetOriginalFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFileNotFound
	}
	data, err := svc.blobs.Open(f.FilePath)
	if err != nil {
		return nil, err
	}
	if err := svc.store.TouchOriginalFile(ctx, id); err != nil {
		svc.logger.Warn("recolte: access stamp failed", "file_id", id, "error", err)
	}
	return data, nil
}

// SweepFiles retires original files untouched since cfg.SweepAfter: rows are
// marked deleted and the stored bytes removed. A zero SweepAfter sweeps
// nothing.
func (svc *Service) SweepFiles(ctx context.Context) (int, error) {
	if svc.config.SweepAfter <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-svc.config.SweepAfter)
	paths, err := svc.store.SweepOriginalFiles(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := svc.blobs.Remove(p); err != nil {
			svc.logger.Warn("sweep: remove blob", "path", p, "error", err)
		}
	}
	return len(paths), nil
}

// --- Introspection ---

// Stats returns aggregate catalog counters plus pipeline counters.
func (svc *Service) Stats(ctx context.Context) (*ServiceStats, error) {
	catalog, err := svc.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &ServiceStats{Catalog: *catalog, Pipeline: svc.orch.Stats()}, nil
}

// Operations returns a snapshot of in-flight pipeline operations.
func (svc *Service) Operations() []pipeline.Operation {
	return svc.orch.Operations()
}

// CancelAll drops in-flight operation bookkeeping. Running stages complete
// in the background; real cancellation is the caller's context.
func (svc *Service) CancelAll() int {
	return svc.orch.CancelAll()
}
