// Package pdftext extracts native text from PDF documents. It never
// performs OCR: a PDF without an extractable text layer yields empty pages.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Pages returns the plain text of each page, in order.
func Pages(body []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not make the document scanned.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Lines splits page texts into trimmed, non-empty lines.
func Lines(pages []string) []string {
	var lines []string
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// HasText reports whether any page carries extractable text.
func HasText(pages []string) bool {
	for _, page := range pages {
		if strings.TrimSpace(page) != "" {
			return true
		}
	}
	return false
}

// IsPDF sniffs the PDF magic bytes.
func IsPDF(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(body, "\r\n\t "), []byte("%PDF-"))
}
