package recolte

import (
	"context"
	"fmt"

	"github.com/hazyhaar/recolte/internal/blob"
	"github.com/hazyhaar/recolte/internal/classify"
	"github.com/hazyhaar/recolte/internal/extract"
	"github.com/hazyhaar/recolte/internal/fetchhttp"
	"github.com/hazyhaar/recolte/internal/pipeline"
	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/store"
)

// detectorAdapter lifts the URL classifier into the pipeline contract.
type detectorAdapter struct {
	d *classify.Detector
}

func (a detectorAdapter) CanHandle(url string) bool { return a.d.CanHandle(url) }

func (a detectorAdapter) Detect(_ context.Context, url string) (*pipeline.Detection, error) {
	det, ok := a.d.Detect(url)
	if !ok {
		return nil, fmt.Errorf("classify: declined %q", url)
	}
	return &pipeline.Detection{Type: det.Type, MimeType: det.MimeType, Metadata: det.Metadata}, nil
}

// fetcherAdapter lifts the HTTP fetcher into the pipeline contract.
type fetcherAdapter struct {
	f *fetchhttp.Fetcher
}

func (a fetcherAdapter) CanFetch(url string) bool { return a.f.CanFetch(url) }

func (a fetcherAdapter) Fetch(ctx context.Context, url string) (*pipeline.FetchResult, error) {
	res, err := a.f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return &pipeline.FetchResult{
		Content:  res.Content,
		MimeType: res.MimeType,
		Size:     res.Size,
		Headers:  res.Headers,
	}, nil
}

// processorAdapter lifts the extract.Set dispatcher into the pipeline
// contract. Extraction is CPU-bound and fast; the context is accepted for
// contract symmetry but not consulted.
type processorAdapter struct {
	set *extract.Set
}

func (a processorAdapter) CanProcess(contentType string) bool { return a.set.CanProcess(contentType) }

func (a processorAdapter) Process(_ context.Context, content []byte, contentType string) (*pipeline.ProcessOutput, error) {
	res, err := a.set.Process(content, contentType)
	if err != nil {
		return nil, err
	}
	return &pipeline.ProcessOutput{
		Title:    res.Title,
		Text:     res.Text,
		Metadata: res.Metadata,
		Tags:     res.Tags,
	}, nil
}

// knowledgeAdapter persists entries in the relational store.
type knowledgeAdapter struct {
	st *store.Store
}

func (a knowledgeAdapter) Store(ctx context.Context, e *store.KnowledgeEntry) (string, error) {
	return a.st.UpsertKnowledgeEntry(ctx, e)
}

func (a knowledgeAdapter) Retrieve(ctx context.Context, id string) (*store.KnowledgeEntry, error) {
	return a.st.GetKnowledgeEntry(ctx, id)
}

// fileAdapter persists raw payloads on disk.
type fileAdapter struct {
	blobs *blob.Store
}

func (a fileAdapter) Store(ctx context.Context, data []byte, filename string) (string, error) {
	return a.blobs.Save(ctx, data, filename)
}

// registryChangeDetector answers change-detection queries from the URL
// registry's stored content hash. A URL is unchanged only when it is known,
// completed, and carries the same hash; everything else counts as changed so
// the pipeline errs toward reprocessing.
type registryChangeDetector struct {
	reg *registry.Registry
}

func (d registryChangeDetector) HasContentChanged(ctx context.Context, url, hash string) (*pipeline.ChangeVerdict, error) {
	rec, err := d.reg.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.ContentHash == "" {
		return &pipeline.ChangeVerdict{Changed: true}, nil
	}
	unchanged := rec.Status == store.StatusCompleted && rec.ContentHash == hash
	return &pipeline.ChangeVerdict{
		Changed:      !unchanged,
		PreviousHash: rec.ContentHash,
		LastChecked:  rec.LastChecked,
	}, nil
}

// RecordContentProcessed is a no-op here: the pipeline already records the
// hash through Registry.UpdateHash, which is the same source of truth this
// detector reads.
func (d registryChangeDetector) RecordContentProcessed(context.Context, string, string) error {
	return nil
}

// originalsAdapter tracks raw payload provenance in the catalog.
type originalsAdapter struct {
	st *store.Store
}

func (a originalsAdapter) RecordOriginalFile(ctx context.Context, f *store.OriginalFile) (string, error) {
	if err := a.st.InsertOriginalFile(ctx, f); err != nil {
		return "", err
	}
	return f.ID, nil
}
