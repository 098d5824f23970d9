package extract

import "strings"

// Text handles plain text, markdown, and text-ish structured formats as
// whitespace-normalized passthroughs. For markdown, the first heading is
// promoted to the title.
type Text struct{}

// NewText creates the text processor.
func NewText() *Text {
	return &Text{}
}

// CanProcess accepts text, markdown, feeds, and common textual MIME types.
func (t *Text) CanProcess(contentType string) bool {
	switch contentType {
	case "text", "markdown", "feed", "text/plain", "text/markdown", "text/csv",
		"application/json", "application/xml", "application/rss+xml",
		"application/atom+xml":
		return true
	}
	return strings.HasPrefix(contentType, "text/")
}

// Process normalizes whitespace and, for markdown, lifts the first heading.
func (t *Text) Process(content []byte, contentType string) (*Result, error) {
	text := normalizeWhitespace(string(content))

	var title string
	if contentType == "markdown" || contentType == "text/markdown" {
		title = firstHeading(text)
	}

	return &Result{Title: title, Text: text}, nil
}

// firstHeading returns the text of the first ATX heading, if any.
func firstHeading(text string) string {
	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(line)
		if stripped := strings.TrimLeft(trimmed, "#"); stripped != trimmed {
			return strings.TrimSpace(stripped)
		}
	}
	return ""
}
