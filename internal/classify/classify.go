// CLAUDE:SUMMARY Default URL classifier: scheme gate + extension/host heuristics → content type and MIME hint.
// Package classify is the default URL-classification collaborator.
//
// It decides, from the URL alone, which content type the pipeline should
// expect and which processor family will handle it. Anything more precise
// (sniffing actual bytes) belongs to the fetch and process stages.
package classify

import (
	"net/url"
	"path"
	"strings"
)

// Detection is the classifier verdict for one URL.
type Detection struct {
	Type     string            // "web", "markdown", "text", "document", "image", "feed"
	MimeType string            // best-effort hint, may be ""
	Metadata map[string]string // e.g. detected host
}

// Detector classifies URLs by scheme and path heuristics.
type Detector struct{}

// New creates a Detector.
func New() *Detector {
	return &Detector{}
}

// extension → (type, mime) table. Unlisted extensions fall back to "web".
var extTypes = map[string]struct{ typ, mime string }{
	".md":       {"markdown", "text/markdown"},
	".markdown": {"markdown", "text/markdown"},
	".txt":      {"text", "text/plain"},
	".csv":      {"text", "text/csv"},
	".json":     {"text", "application/json"},
	".xml":      {"feed", "application/xml"},
	".rss":      {"feed", "application/rss+xml"},
	".atom":     {"feed", "application/atom+xml"},
	".pdf":      {"document", "application/pdf"},
	".doc":      {"document", "application/msword"},
	".docx":     {"document", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".odt":      {"document", "application/vnd.oasis.opendocument.text"},
	".png":      {"image", "image/png"},
	".jpg":      {"image", "image/jpeg"},
	".jpeg":     {"image", "image/jpeg"},
	".gif":      {"image", "image/gif"},
	".webp":     {"image", "image/webp"},
	".svg":      {"image", "image/svg+xml"},
	".html":     {"web", "text/html"},
	".htm":      {"web", "text/html"},
}

// CanHandle reports whether the classifier accepts the URL at all.
// Only absolute http/https URLs are handled.
func (d *Detector) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// Detect classifies a URL. ok=false means the URL is declined entirely.
func (d *Detector) Detect(rawURL string) (Detection, bool) {
	if !d.CanHandle(rawURL) {
		return Detection{}, false
	}
	parsed, _ := url.Parse(strings.TrimSpace(rawURL))

	det := Detection{
		Type:     "web",
		MimeType: "text/html",
		Metadata: map[string]string{"host": strings.ToLower(parsed.Hostname())},
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	if entry, ok := extTypes[ext]; ok {
		det.Type = entry.typ
		det.MimeType = entry.mime
	}
	return det, true
}
