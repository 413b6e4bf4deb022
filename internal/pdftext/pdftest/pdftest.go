// Package pdftest builds minimal single-font PDF documents for tests. The
// generated files carry uncompressed content streams and a computed xref
// table, enough for the text extractor without a PDF library on the write
// side.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build produces a PDF with one page per entry; each page shows its lines
// with a standard Type1 font. A page with no lines has an empty content
// stream, which reads back as a page without extractable text.
func Build(pages ...[]string) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, 4+2*len(pages))

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprint(&buf, body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	firstPage := 4
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf(
		"2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pages),
	))
	writeObj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, lines := range pages {
		pageNum := firstPage + 2*i
		contentNum := pageNum + 1
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			pageNum, contentNum,
		))
		stream := contentStream(lines)
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n",
			contentNum, len(stream), stream,
		))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf,
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset,
	)
	return buf.Bytes()
}

func contentStream(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("BT /F1 12 Tf 72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("0 -16 Td\n")
		}
		fmt.Fprintf(&sb, "(%s) Tj\n", escape(line))
	}
	sb.WriteString("ET\n")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "(", "\\(", ")", "\\)")
	return r.Replace(s)
}
