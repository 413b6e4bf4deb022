// Package classify assigns a structural family to each fetched document.
package classify

import (
	"bytes"
	"strings"

	"github.com/arremate/ingestor/internal/extract"
	"github.com/arremate/ingestor/internal/pdftext"
	"github.com/arremate/ingestor/internal/pipeline"
)

// classifierVersion is stamped on classification quarantine entries. Bumping
// it marks previously quarantined scanned/unsupported documents as eligible
// for re-processing.
const classifierVersion = "classifier/1.1"

const (
	// headerScoreThreshold is how many vocabulary tokens one line must carry
	// to count as a table header.
	headerScoreThreshold = 3
	// startWindowLines bounds how deep into the text a header may sit while
	// still counting as table-near-start.
	startWindowLines = 40
)

// xlsxMagic is the ZIP local file header shared by OOXML containers.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// Classifier implements pipeline.Classifier with layout heuristics. It is
// total: every document maps to exactly one family, and families without an
// extractor still classify cleanly so they can be quarantined with a code.
type Classifier struct{}

// New constructs a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Version returns the heuristics version recorded on quarantine entries.
func (c *Classifier) Version() string {
	return classifierVersion
}

// Classify inspects content type, magic bytes, and extractable text layout.
func (c *Classifier) Classify(doc pipeline.SourceDocument) pipeline.Family {
	if len(doc.Body) == 0 {
		return pipeline.FamilyCorrupted
	}
	switch {
	case isHTML(doc):
		return pipeline.FamilyHTMLListing
	case isCSV(doc):
		return pipeline.FamilyTableStart
	case isXLSX(doc):
		return pipeline.FamilyTableStart
	case pdftext.IsPDF(doc.Body):
		return classifyPDF(doc.Body)
	default:
		return pipeline.FamilyUnsupported
	}
}

func classifyPDF(body []byte) pipeline.Family {
	pages, err := pdftext.Pages(body)
	if err != nil {
		return pipeline.FamilyCorrupted
	}
	if !pdftext.HasText(pages) {
		// Image-only PDF. OCR is out of scope, so this is terminal.
		return pipeline.FamilyScanned
	}
	lines := pdftext.Lines(pages)
	for i, line := range lines {
		if extract.HeaderScore(line) >= headerScoreThreshold {
			if i < startWindowLines {
				return pipeline.FamilyTableStart
			}
			return pipeline.FamilyTableLate
		}
	}
	return pipeline.FamilyNativeText
}

func isHTML(doc pipeline.SourceDocument) bool {
	if strings.Contains(strings.ToLower(doc.ContentType), "text/html") {
		return true
	}
	head := bytes.ToLower(doc.Body[:min(len(doc.Body), 512)])
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html"))
}

func isCSV(doc pipeline.SourceDocument) bool {
	ct := strings.ToLower(doc.ContentType)
	if strings.Contains(ct, "text/csv") || strings.Contains(ct, "application/csv") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(urlPath(doc.URL)), ".csv")
}

func isXLSX(doc pipeline.SourceDocument) bool {
	ct := strings.ToLower(doc.ContentType)
	if strings.Contains(ct, "spreadsheetml") {
		return true
	}
	return bytes.HasPrefix(doc.Body, xlsxMagic) &&
		strings.HasSuffix(strings.ToLower(urlPath(doc.URL)), ".xlsx")
}

func urlPath(raw string) string {
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
