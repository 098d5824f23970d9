package extract

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML processes web pages: sanitize, pull the title, convert the body to
// structured markdown.
type HTML struct {
	sanitizer   *bluemonday.Policy
	mdConverter *converter.Converter
}

// NewHTML creates the HTML processor.
func NewHTML() *HTML {
	return &HTML{
		sanitizer: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// CanProcess accepts web pages and HTML MIME types.
func (h *HTML) CanProcess(contentType string) bool {
	switch contentType {
	case "web", "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// Process extracts title and markdown text from raw HTML.
func (h *HTML) Process(content []byte, contentType string) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	title := findTitle(doc)

	sanitized := h.sanitizer.SanitizeBytes(content)
	text, err := h.mdConverter.ConvertString(string(sanitized))
	if err != nil || strings.TrimSpace(text) == "" {
		// Markdown conversion is best-effort: fall back to bare text nodes.
		text = collectText(doc)
	}

	return &Result{
		Title:    title,
		Text:     normalizeWhitespace(text),
		Metadata: map[string]string{"renderer": "markdown"},
	}, nil
}

// findTitle walks the DOM for the first non-empty <title>.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectText concatenates visible text nodes, skipping script/style.
func collectText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}
