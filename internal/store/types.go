package store

// URL lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// Original file statuses.
const (
	FileActive     = "active"
	FileArchived   = "archived"
	FileDeleted    = "deleted"
	FileProcessing = "processing"
	FileError      = "error"
)

// URLRecord is one row of the urls table. Timestamps are Unix milliseconds.
type URLRecord struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	NormalizedURL     string `json:"normalized_url"`
	ContentHash       string `json:"content_hash"`
	PreviousHash      string `json:"previous_hash"`
	Status            string `json:"status"`
	ErrorMessage      string `json:"error_message,omitempty"`
	FirstSeen         int64  `json:"first_seen"`
	LastChecked       int64  `json:"last_checked"`
	LastContentChange int64  `json:"last_content_change,omitempty"`
	ProcessCount      int    `json:"process_count"`
	ContentVersion    int    `json:"content_version"`
	MetadataJSON      string `json:"metadata"`
}

// Tag is one node of the tag hierarchy.
type Tag struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ParentID    string `json:"parent_id,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// KnowledgeEntry is extracted content for one (url, checksum) pair.
type KnowledgeEntry struct {
	ID               string `json:"id"`
	URLID            string `json:"url_id"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	ContentType      string `json:"content_type"`
	Text             string `json:"text"`
	MetadataJSON     string `json:"metadata"`
	TagsJSON         string `json:"tags"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
	Size             int64  `json:"size"`
	Checksum         string `json:"checksum"`
	ProcessingStatus string `json:"processing_status"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// OriginalFile records one persisted raw payload.
type OriginalFile struct {
	ID           string `json:"id"`
	URLID        string `json:"url_id,omitempty"`
	URL          string `json:"url"`
	FilePath     string `json:"file_path"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	Checksum     string `json:"checksum"`
	ScraperUsed  string `json:"scraper_used,omitempty"`
	Status       string `json:"status"`
	MetadataJSON string `json:"metadata"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	AccessedAt   int64  `json:"accessed_at,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

// IngestLogEntry is one pipeline attempt, success or failure.
type IngestLogEntry struct {
	ID           string `json:"id"`
	URLID        string `json:"url_id,omitempty"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	AttemptedAt  int64  `json:"attempted_at"`
}

// SearchResult is one FTS5 hit on knowledge entries.
type SearchResult struct {
	EntryID string  `json:"entry_id"`
	URLID   string  `json:"url_id"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Rank    float64 `json:"rank"`
}

// CatalogStats holds aggregate counters for the whole catalog.
type CatalogStats struct {
	URLs          int            `json:"urls"`
	URLsByStatus  map[string]int `json:"urls_by_status"`
	Entries       int            `json:"entries"`
	Tags          int            `json:"tags"`
	OriginalFiles int            `json:"original_files"`
	IngestLogs    int            `json:"ingest_logs"`
}
