// CLAUDE:SUMMARY Binary document processor: PDF via pdfcpu content streams, DOCX/ODT via their zipped XML bodies.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document handles binary document formats. The concrete format is sniffed
// from the payload magic, never trusted from the type hint: a URL ending in
// .docx can still serve a PDF.
type Document struct{}

// NewDocument creates the document processor.
func NewDocument() *Document {
	return &Document{}
}

// CanProcess accepts the document family and its common MIME types.
func (d *Document) CanProcess(contentType string) bool {
	switch contentType {
	case "document", "application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text":
		return true
	}
	return false
}

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0}
)

// Process sniffs the payload and dispatches to the matching extractor.
func (d *Document) Process(content []byte, contentType string) (*Result, error) {
	switch {
	case bytes.HasPrefix(content, pdfMagic):
		return processPDF(content)
	case bytes.HasPrefix(content, zipMagic):
		return processZipDocument(content)
	case bytes.HasPrefix(content, oleMagic):
		return nil, fmt.Errorf("extract: legacy OLE documents (.doc) are not supported")
	}
	return nil, fmt.Errorf("extract: unrecognized document payload for type %q", contentType)
}

// --- PDF --------------------------------------------------------------------

func processPDF(content []byte) (*Result, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	var text strings.Builder
	var title string
	for page := 1; page <= pdfCtx.PageCount; page++ {
		pageText := pdfPageText(pdfCtx, page)
		if pageText == "" {
			continue
		}
		if title == "" {
			title = firstPDFLine(pageText)
		}
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(pageText)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("extract: no text content in pdf")
	}

	return &Result{
		Title: title,
		Text:  normalizeWhitespace(text.String()),
		Metadata: map[string]string{
			"format": "pdf",
			"pages":  strconv.Itoa(pdfCtx.PageCount),
		},
	}, nil
}

func pdfPageText(pdfCtx *model.Context, page int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfLiteral matches PDF string literals: (text here)
var pdfLiteral = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream pulls string literals out of the text-showing
// operators (Tj, TJ, ') and approximates layout from the positioning
// operators (Td, TD, T*).
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfLiteral.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return collapsePDFText(sb.String())
}

// decodePDFLiteral handles the basic PDF string escapes, including octal.
func decodePDFLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// collapsePDFText drops non-printable runes and collapses whitespace runs.
func collapsePDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

func firstPDFLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// --- DOCX / ODT ---------------------------------------------------------------

func processZipDocument(content []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open document archive: %w", err)
	}
	if f := zipEntry(zr, "word/document.xml"); f != nil {
		return processWordBody(f)
	}
	if f := zipEntry(zr, "content.xml"); f != nil {
		return processODTBody(f)
	}
	return nil, fmt.Errorf("extract: archive holds neither word/document.xml nor content.xml")
}

func zipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// processWordBody walks word/document.xml: paragraph text accumulates between
// <w:p> boundaries, and the first styled heading becomes the title.
func processWordBody(f *zip.File) (*Result, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		title      string
		paragraphs []string
		current    strings.Builder
		inPara     bool
		style      string
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
				style = ""
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			}
		case xml.CharData:
			if inPara {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inPara {
				inPara = false
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				if title == "" && wordHeadingLevel(style) > 0 {
					title = text
				}
				paragraphs = append(paragraphs, text)
			}
		}
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("extract: empty docx body")
	}
	return &Result{
		Title:    title,
		Text:     strings.Join(paragraphs, "\n\n"),
		Metadata: map[string]string{"format": "docx"},
	}, nil
}

// wordHeadingLevel maps a paragraph style name to a heading level, 0 for body.
func wordHeadingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if rest, ok := strings.CutPrefix(lower, "heading"); ok {
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}

// processODTBody walks content.xml: <text:h> elements are headings (first one
// becomes the title), <text:p> elements are body paragraphs.
func processODTBody(f *zip.File) (*Result, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open content.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		title      string
		paragraphs []string
		current    strings.Builder
		inText     bool
		isHeading  bool
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "h":
				inText, isHeading = true, true
				current.Reset()
			case "p":
				inText, isHeading = true, false
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if (t.Name.Local == "h" || t.Name.Local == "p") && inText {
				inText = false
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				if isHeading && title == "" {
					title = text
				}
				paragraphs = append(paragraphs, text)
			}
		}
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("extract: empty odt body")
	}
	return &Result{
		Title:    title,
		Text:     strings.Join(paragraphs, "\n\n"),
		Metadata: map[string]string{"format": "odt"},
	}, nil
}
