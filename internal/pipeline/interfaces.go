// CLAUDE:SUMMARY Collaborator contracts consumed by the orchestrator: detector, fetcher, processor, stores, change detector.
package pipeline

import (
	"context"

	"github.com/hazyhaar/recolte/internal/store"
)

// Detection is a classifier verdict for one URL.
type Detection struct {
	Type     string
	MimeType string
	Metadata map[string]string
}

// Detector classifies URLs before anything is fetched.
type Detector interface {
	CanHandle(url string) bool
	Detect(ctx context.Context, url string) (*Detection, error)
}

// FetchResult is the raw payload returned by a content fetcher.
type FetchResult struct {
	Content  []byte
	MimeType string
	Size     int64
	Headers  map[string][]string
	Metadata map[string]string
}

// Fetcher retrieves raw bytes for a URL.
type Fetcher interface {
	CanFetch(url string) bool
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// ProcessOutput is cleaned content produced by a processor.
type ProcessOutput struct {
	Title    string
	Text     string
	Metadata map[string]string
	Tags     []string
}

// Processor converts raw content of a detected type into text.
type Processor interface {
	CanProcess(contentType string) bool
	Process(ctx context.Context, content []byte, contentType string) (*ProcessOutput, error)
}

// KnowledgeStore persists knowledge entries at the Index stage.
type KnowledgeStore interface {
	Store(ctx context.Context, entry *store.KnowledgeEntry) (string, error)
	Retrieve(ctx context.Context, id string) (*store.KnowledgeEntry, error)
}

// FileStore persists raw payloads at the Store stage.
type FileStore interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
}

// ChangeVerdict is a change detector's answer for one (url, hash) pair.
type ChangeVerdict struct {
	Changed      bool
	PreviousHash string
	LastChecked  int64
}

// ChangeDetector is the optional short-circuit collaborator. A nil
// ChangeDetector in Deps means every fetch is treated as changed; the
// capability is resolved once at construction, never re-checked per call.
type ChangeDetector interface {
	HasContentChanged(ctx context.Context, url, hash string) (*ChangeVerdict, error)
	RecordContentProcessed(ctx context.Context, url, hash string) error
}

// OriginalFileRecorder is the optional provenance collaborator. Failures
// here are non-fatal: content is processed but untracked.
type OriginalFileRecorder interface {
	RecordOriginalFile(ctx context.Context, f *store.OriginalFile) (string, error)
}
