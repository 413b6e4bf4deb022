package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/arremate/ingestor/internal/pdftext"
	"github.com/arremate/ingestor/internal/pipeline"
)

const tabularVersion = "tabular/2.0"

// minDescriptionLen is the shortest description accepted before a row is
// flagged DESCRICAO_INSUFICIENTE.
const minDescriptionLen = 10

// columnSplitExpr splits text-layout PDF rows on runs of whitespace.
var columnSplitExpr = regexp.MustCompile(`\s{2,}|\t+`)

// Tabular extracts one candidate record per row of a recognized lot table.
// It reads CSV and XLSX attachments directly and falls back to a
// whitespace-column split for text-layout PDF tables. Malformed rows fail
// individually; the rest of the table is still extracted.
type Tabular struct {
	family pipeline.Family
}

// NewTabular constructs the extractor for the given table family, so row
// provenance records the family the document was classified as.
func NewTabular(family pipeline.Family) *Tabular {
	return &Tabular{family: family}
}

// Family identifies the family served.
func (e *Tabular) Family() pipeline.Family {
	return e.family
}

// Version returns the extractor version recorded in provenance.
func (e *Tabular) Version() string {
	return tabularVersion
}

// Extract locates the header row and yields candidate records with source
// file, page, and row provenance.
func (e *Tabular) Extract(doc pipeline.SourceDocument) ([]pipeline.CandidateRecord, []pipeline.ExtractionError) {
	rows, page, err := tableRows(doc)
	if err != nil {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeCorruptedDocument,
			Detail: err.Error(),
		}}
	}
	if len(rows) == 0 {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeTableNotFound,
			Detail: "document contains no tabular rows",
		}}
	}

	headerIdx := -1
	var mapping map[int]Column
	for i, row := range rows {
		if m, ok := MatchHeader(row); ok {
			headerIdx = i
			mapping = m
			break
		}
	}
	if headerIdx < 0 {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeTableHeaderInvalid,
			Detail: fmt.Sprintf("no recognized header in %d rows", len(rows)),
		}}
	}

	var (
		records []pipeline.CandidateRecord
		errs    []pipeline.ExtractionError
	)
	for i, row := range rows[headerIdx+1:] {
		rowIdx := headerIdx + 1 + i
		if blankRow(row) {
			continue
		}
		rec, rowErr := e.buildRecord(doc, mapping, row, page, rowIdx)
		if rowErr != nil {
			rowErr.Page = page
			rowErr.Row = rowIdx
			errs = append(errs, *rowErr)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 && len(errs) == 0 {
		errs = append(errs, pipeline.ExtractionError{
			Code:   pipeline.CodeTableNotFound,
			Detail: "recognized header but no data rows",
			Page:   page,
		})
	}

	// Auction date and issuing entity usually sit in the prose above the
	// table and apply to every row.
	if pdftext.IsPDF(doc.Body) {
		auctionDate, entity := documentContext(doc.Body)
		for i := range records {
			if records[i].AuctionDate == "" {
				records[i].AuctionDate = auctionDate
			}
			if records[i].Entity == "" {
				records[i].Entity = entity
			}
		}
	}
	return records, errs
}

func documentContext(body []byte) (auctionDate, entity string) {
	pages, err := pdftext.Pages(body)
	if err != nil {
		return "", ""
	}
	for _, line := range pdftext.Lines(pages) {
		if auctionDate == "" {
			if m := dateExpr.FindStringSubmatch(line); m != nil {
				if canonical, ok := CanonicalizeDate(m[1]); ok {
					auctionDate = canonical
				}
			}
		}
		if entity == "" {
			if m := entityExpr.FindStringSubmatch(line); m != nil {
				entity = strings.TrimSpace(m[1])
			}
		}
		if auctionDate != "" && entity != "" {
			break
		}
	}
	return auctionDate, entity
}

func (e *Tabular) buildRecord(
	doc pipeline.SourceDocument,
	mapping map[int]Column,
	row []string,
	page, rowIdx int,
) (pipeline.CandidateRecord, *pipeline.ExtractionError) {
	rec := pipeline.CandidateRecord{SourceURL: doc.URL}
	for i, col := range mapping {
		if i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		switch col {
		case ColumnLot:
			rec.LotNumber = value
		case ColumnDescription:
			rec.Description = value
			rec.Title = value
		case ColumnValuation:
			rec.Valuation = value
		case ColumnPlate:
			rec.Plate = value
		case ColumnChassis:
			rec.Chassis = value
		case ColumnRegistration:
			rec.Registration = value
		case ColumnBrand:
			rec.Brand = value
		case ColumnModel:
			rec.Model = value
		case ColumnYear:
			rec.Year = value
		case ColumnCity:
			rec.City = value
		case ColumnState:
			rec.State = strings.ToUpper(value)
		}
	}

	if rec.LotNumber == "" {
		return pipeline.CandidateRecord{}, &pipeline.ExtractionError{
			Code:   pipeline.CodeLotNumberMissing,
			Detail: "row has no lot number",
		}
	}
	if len(rec.Description) < minDescriptionLen {
		return pipeline.CandidateRecord{}, &pipeline.ExtractionError{
			Code:   pipeline.CodeDescriptionScant,
			Detail: fmt.Sprintf("description %q below minimum length", rec.Description),
		}
	}
	if rec.Valuation != "" {
		if _, err := ParseMoneyCentavos(rec.Valuation); err != nil {
			return pipeline.CandidateRecord{}, &pipeline.ExtractionError{
				Code:   pipeline.CodeValueUnparsable,
				Detail: fmt.Sprintf("valuation %q: %v", rec.Valuation, err),
			}
		}
	}

	rec.Provenance = pipeline.Provenance{
		SourceURL:        doc.URL,
		SourceFile:       doc.URL,
		Page:             page,
		Row:              rowIdx,
		ExtractorFamily:  e.family,
		ExtractorVersion: tabularVersion,
		Confidence:       0.9,
	}
	return rec, nil
}

// tableRows turns the document into a row matrix plus the page number the
// table was found on (0 for single-page formats).
func tableRows(doc pipeline.SourceDocument) ([][]string, int, error) {
	switch {
	case pdftext.IsPDF(doc.Body):
		return pdfRows(doc.Body)
	case bytes.HasPrefix(doc.Body, []byte{0x50, 0x4b, 0x03, 0x04}):
		return xlsxRows(doc.Body)
	default:
		return csvRows(doc.Body)
	}
}

func csvRows(body []byte) ([][]string, int, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = sniffDelimiter(body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	return rows, 0, nil
}

// sniffDelimiter picks ';' over ',' when the first line favors it; Brazilian
// CSV exports are routinely semicolon-delimited.
func sniffDelimiter(body []byte) rune {
	line := body
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		line = body[:idx]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func xlsxRows(body []byte) ([][]string, int, error) {
	book, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, 0, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, 0, nil
}

func pdfRows(body []byte) ([][]string, int, error) {
	pages, err := pdftext.Pages(body)
	if err != nil {
		return nil, 0, fmt.Errorf("read pdf text: %w", err)
	}
	headerPage := 0
	var rows [][]string
	for pageIdx, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			cells := columnSplitExpr.Split(strings.TrimSpace(line), -1)
			if headerPage == 0 {
				if _, ok := MatchHeader(cells); ok {
					headerPage = pageIdx + 1
				}
			}
			rows = append(rows, cells)
		}
	}
	return rows, headerPage, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
