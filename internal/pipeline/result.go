package pipeline

import (
	"time"

	"github.com/hazyhaar/recolte/internal/faults"
)

// Result is the outcome of one ProcessURL call. ProcessURL always returns a
// Result — stage failures populate Error instead of escaping as raw errors.
type Result struct {
	URL         string         `json:"url"`
	URLID       string         `json:"url_id,omitempty"`
	OperationID string         `json:"operation_id"`
	Success     bool           `json:"success"`
	Skipped     bool           `json:"skipped,omitempty"`
	KnowledgeID string         `json:"knowledge_id,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	Title       string         `json:"title,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       *faults.Error  `json:"error,omitempty"`
	// Recovery is the recommended strategy when Error is set. The pipeline
	// only recommends; it never retries on its own.
	Recovery faults.Recovery `json:"recovery,omitempty"`
}

func (r *Result) withMeta(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, 2)
	}
	r.Metadata[key] = value
	return r
}

// Stats are the orchestrator's running counters.
type Stats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
