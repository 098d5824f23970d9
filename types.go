package recolte

import (
	"github.com/hazyhaar/recolte/internal/faults"
	"github.com/hazyhaar/recolte/internal/pipeline"
	"github.com/hazyhaar/recolte/internal/store"
)

// Re-exported pipeline types so callers work against this package alone.
type (
	// Options tune one ProcessURL call.
	Options = pipeline.Options
	// Result is the outcome of one pipeline run.
	Result = pipeline.Result
	// Operation is a transient in-flight record.
	Operation = pipeline.Operation

	// Error is a stage-tagged, coded ingestion error.
	Error = faults.Error
	// Code identifies a stable error category.
	Code = faults.Code
	// Recovery is a recommended failure-handling strategy.
	Recovery = faults.Recovery

	// URLRecord is one registered URL.
	URLRecord = store.URLRecord
	// Tag is one node of the tag hierarchy.
	Tag = store.Tag
	// KnowledgeEntry is extracted content for one (url, checksum) pair.
	KnowledgeEntry = store.KnowledgeEntry
	// OriginalFile records one persisted raw payload.
	OriginalFile = store.OriginalFile
	// SearchResult is one full-text search hit.
	SearchResult = store.SearchResult
)

// ServiceStats bundles catalog counters with pipeline counters.
type ServiceStats struct {
	Catalog  store.CatalogStats `json:"catalog"`
	Pipeline pipeline.Stats     `json:"pipeline"`
}
