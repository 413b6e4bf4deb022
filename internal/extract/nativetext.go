package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arremate/ingestor/internal/pdftext"
	"github.com/arremate/ingestor/internal/pipeline"
)

const nativeTextVersion = "native-text/1.4"

// Line-oriented field patterns for non-tabular tender text. Same vocabulary
// as the tabular extractor, lower confidence.
var (
	lotExpr       = regexp.MustCompile(`(?i)^lote\s*(?:n[ºo°.]*\s*)?[:\-]?\s*(\S+)`)
	plateExpr     = regexp.MustCompile(`(?i)\bplaca\s*[:\-]?\s*([A-Z]{3}[- ]?\d[A-Z0-9]\d{2})`)
	chassisExpr   = regexp.MustCompile(`(?i)\bchassis?\s*[:\-]?\s*([A-HJ-NPR-Z0-9]{17})`)
	renavamExpr   = regexp.MustCompile(`(?i)\brenavam\s*[:\-]?\s*(\d{9,11})`)
	valueExpr     = regexp.MustCompile(`(?i)\b(?:avalia[cç][aã]o|valor|lance\s+m[ií]nimo)\s*[:\-]?\s*(R\$\s*[\d.,]+)`)
	dateExpr      = regexp.MustCompile(`(?i)\b(?:data\s+do\s+leil[aã]o|leil[aã]o\s+em)\s*[:\-]?\s*(\d{2}/\d{2}/\d{4})`)
	cityStateExpr = regexp.MustCompile(`(?i)\blocaliza[cç][aã]o\s*[:\-]?\s*([^/\n]+?)\s*/\s*([A-Za-z]{2})\b`)
	yearLineExpr  = regexp.MustCompile(`(?i)\bano\s*(?:fab[./]?(?:modelo)?)?\s*[:\-]?\s*((?:19|20)\d{2})`)
	entityExpr    = regexp.MustCompile(`(?i)\b(?:comitente|[oó]rg[aã]o|leiloeiro oficial)\s*[:\-]\s*(.{3,80})`)
)

// NativeText scans text-bearing, non-tabular documents line by line. A new
// lot marker opens a record; subsequent field lines attach to it.
type NativeText struct{}

// NewNativeText constructs the extractor.
func NewNativeText() *NativeText {
	return &NativeText{}
}

// Family identifies the primary family served.
func (e *NativeText) Family() pipeline.Family {
	return pipeline.FamilyNativeText
}

// Version returns the extractor version recorded in provenance.
func (e *NativeText) Version() string {
	return nativeTextVersion
}

// Extract walks the document text accumulating one record per lot marker.
func (e *NativeText) Extract(doc pipeline.SourceDocument) ([]pipeline.CandidateRecord, []pipeline.ExtractionError) {
	pages, err := pdftext.Pages(doc.Body)
	if err != nil {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeCorruptedDocument,
			Detail: err.Error(),
		}}
	}

	var (
		records []pipeline.CandidateRecord
		errs    []pipeline.ExtractionError
		current *pipeline.CandidateRecord
		row     int
	)
	flush := func() {
		if current == nil {
			return
		}
		if len(current.Description) < minDescriptionLen {
			errs = append(errs, pipeline.ExtractionError{
				Code:   pipeline.CodeDescriptionScant,
				Detail: fmt.Sprintf("lot %s description too short", current.LotNumber),
				Row:    current.Provenance.Row,
				Page:   current.Provenance.Page,
			})
			current = nil
			return
		}
		records = append(records, *current)
		current = nil
	}

	for pageIdx, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			row++
			if m := lotExpr.FindStringSubmatch(line); m != nil {
				flush()
				current = &pipeline.CandidateRecord{
					LotNumber: strings.TrimRight(m[1], ".,;:"),
					SourceURL: doc.URL,
					Provenance: pipeline.Provenance{
						SourceURL:        doc.URL,
						SourceFile:       doc.URL,
						Page:             pageIdx + 1,
						Row:              row,
						ExtractorFamily:  pipeline.FamilyNativeText,
						ExtractorVersion: nativeTextVersion,
						Confidence:       0.6,
					},
				}
				if rest := strings.TrimSpace(lotExpr.ReplaceAllString(line, "")); rest != "" {
					current.Description = strings.TrimLeft(rest, "-–: ")
					current.Title = current.Description
				}
				continue
			}
			if current == nil {
				continue
			}
			e.attachFields(current, line)
		}
	}
	flush()

	if len(records) == 0 && len(errs) == 0 {
		errs = append(errs, pipeline.ExtractionError{
			Code:   pipeline.CodeUnexpectedLayout,
			Detail: "no lot markers found in document text",
		})
	}
	return records, errs
}

func (e *NativeText) attachFields(rec *pipeline.CandidateRecord, line string) {
	if m := plateExpr.FindStringSubmatch(line); m != nil && rec.Plate == "" {
		rec.Plate = strings.ToUpper(strings.ReplaceAll(m[1], " ", "-"))
	}
	if m := chassisExpr.FindStringSubmatch(line); m != nil && rec.Chassis == "" {
		rec.Chassis = strings.ToUpper(m[1])
	}
	if m := renavamExpr.FindStringSubmatch(line); m != nil && rec.Registration == "" {
		rec.Registration = m[1]
	}
	if m := valueExpr.FindStringSubmatch(line); m != nil && rec.Valuation == "" {
		rec.Valuation = strings.TrimSpace(m[1])
	}
	if m := dateExpr.FindStringSubmatch(line); m != nil && rec.AuctionDate == "" {
		if canonical, ok := CanonicalizeDate(m[1]); ok {
			rec.AuctionDate = canonical
		}
	}
	if m := cityStateExpr.FindStringSubmatch(line); m != nil && rec.City == "" {
		rec.City = strings.TrimSpace(m[1])
		rec.State = strings.ToUpper(m[2])
	}
	if m := yearLineExpr.FindStringSubmatch(line); m != nil && rec.Year == "" {
		rec.Year = m[1]
	}
	if m := entityExpr.FindStringSubmatch(line); m != nil && rec.Entity == "" {
		rec.Entity = strings.TrimSpace(m[1])
	}
	// Non-field lines open or extend the description.
	if !hasFieldMarker(line) {
		switch {
		case rec.Description == "":
			rec.Description = line
		case len(rec.Description) < 500:
			rec.Description += " " + line
		}
	}
	if rec.Title == "" && rec.Description != "" {
		rec.Title = rec.Description
	}
}

func hasFieldMarker(line string) bool {
	for _, expr := range []*regexp.Regexp{plateExpr, chassisExpr, renavamExpr, valueExpr, dateExpr, cityStateExpr, yearLineExpr, entityExpr} {
		if expr.MatchString(line) {
			return true
		}
	}
	return false
}
