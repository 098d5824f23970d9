// CLAUDE:SUMMARY Content processors keyed by detected type: HTML sanitize+markdown, plaintext/markdown passthrough.
// Package extract holds the default content-processing collaborators.
//
// Each processor turns raw fetched bytes of one detected type into a title,
// cleaned text, and optional metadata. HTML goes through sanitize → title
// walk → markdown conversion; plain text and markdown are normalized
// passthroughs; binary documents (PDF, DOCX, ODT) go through format-sniffed
// structural extraction.
package extract

import (
	"fmt"
	"strings"
)

// Result is the output of one processing call.
type Result struct {
	Title    string
	Text     string
	Metadata map[string]string
	Tags     []string // processor-suggested tags, may be nil
}

// Processor converts raw content of one family of types.
type Processor interface {
	CanProcess(contentType string) bool
	Process(content []byte, contentType string) (*Result, error)
}

// Set dispatches to the first registered processor accepting a type.
type Set struct {
	processors []Processor
}

// NewSet builds the default processor set: HTML, text/markdown, documents.
func NewSet() *Set {
	return &Set{processors: []Processor{NewHTML(), NewText(), NewDocument()}}
}

// Register appends a processor to the set. Later registrations are only
// consulted when no earlier processor accepts the type.
func (s *Set) Register(p Processor) {
	s.processors = append(s.processors, p)
}

// CanProcess reports whether any processor accepts the type.
func (s *Set) CanProcess(contentType string) bool {
	for _, p := range s.processors {
		if p.CanProcess(contentType) {
			return true
		}
	}
	return false
}

// Process dispatches to the first accepting processor.
func (s *Set) Process(content []byte, contentType string) (*Result, error) {
	for _, p := range s.processors {
		if p.CanProcess(contentType) {
			return p.Process(content, contentType)
		}
	}
	return nil, fmt.Errorf("extract: no processor for type %q", contentType)
}

// normalizeWhitespace collapses runs of blank lines and trims trailing
// spaces, keeping paragraph structure intact.
func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
