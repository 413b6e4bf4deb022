package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/arremate/ingestor/internal/pipeline"
)

// htmlTitleVersion tags provenance so title-only extractions can be
// re-processed when the parser improves.
const htmlTitleVersion = "html-title/1.2"

// brandVocabulary is the controlled vocabulary of vehicle makes recognized
// in descriptive titles.
var brandVocabulary = map[string]struct{}{
	"fiat": {}, "vw": {}, "volkswagen": {}, "gm": {}, "chevrolet": {},
	"ford": {}, "honda": {}, "toyota": {}, "hyundai": {}, "renault": {},
	"peugeot": {}, "citroen": {}, "nissan": {}, "yamaha": {}, "suzuki": {},
	"mercedes": {}, "mb": {}, "bmw": {}, "scania": {}, "volvo": {},
	"iveco": {}, "mitsubishi": {}, "kia": {}, "jeep": {},
}

var (
	yearExpr     = regexp.MustCompile(`\b((?:19|20)\d{2})(?:/((?:19|20)\d{2}))?\b`)
	locationExpr = regexp.MustCompile(`(?i)localiza[cç][aã]o\s*:?\s*([^/]+?)\s*/\s*([A-Za-z]{2})\b`)
)

// HTMLTitle extracts a single candidate record from the descriptive title of
// a script-rendered page. This is the low-fidelity fallback for sources with
// no server-rendered payload; every field it derives is marked title-only.
type HTMLTitle struct{}

// NewHTMLTitle constructs the extractor.
func NewHTMLTitle() *HTMLTitle {
	return &HTMLTitle{}
}

// Family identifies the primary family served.
func (e *HTMLTitle) Family() pipeline.Family {
	return pipeline.FamilyHTMLListing
}

// Version returns the extractor version recorded in provenance.
func (e *HTMLTitle) Version() string {
	return htmlTitleVersion
}

// Extract parses the page title into brand/model/year tokens and a
// City/State suffix.
func (e *HTMLTitle) Extract(doc pipeline.SourceDocument) ([]pipeline.CandidateRecord, []pipeline.ExtractionError) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeCorruptedDocument,
			Detail: "unparsable html: " + err.Error(),
		}}
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	if og, ok := page.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = strings.TrimSpace(og)
	}
	if title == "" {
		return nil, []pipeline.ExtractionError{{
			Code:   pipeline.CodeUnexpectedLayout,
			Detail: "page exposes no descriptive title",
		}}
	}

	rec := parseTitle(title)
	rec.SourceURL = doc.URL
	rec.Provenance = pipeline.Provenance{
		SourceURL:        doc.URL,
		ExtractorFamily:  pipeline.FamilyHTMLListing,
		ExtractorVersion: htmlTitleVersion,
		Confidence:       0.4,
		TitleOnly:        true,
	}
	return []pipeline.CandidateRecord{rec}, nil
}

// parseTitle splits "FIAT/OGGI CS 1983/1983. Localização: Cordeiro/RJ" into
// its summary, location, and vehicle tokens.
func parseTitle(title string) pipeline.CandidateRecord {
	rec := pipeline.CandidateRecord{}

	summary := title
	if m := locationExpr.FindStringSubmatchIndex(title); m != nil {
		groups := locationExpr.FindStringSubmatch(title)
		rec.City = strings.TrimSpace(groups[1])
		rec.State = strings.ToUpper(strings.TrimSpace(groups[2]))
		summary = strings.TrimSpace(title[:m[0]])
	}
	summary = strings.TrimRight(summary, ". ")
	rec.Title = summary
	rec.Description = summary

	if m := yearExpr.FindStringSubmatch(summary); m != nil {
		rec.Year = m[1]
	}

	// Brand/model: "FIAT/OGGI CS" or "FIAT OGGI CS".
	head := summary
	if m := yearExpr.FindStringIndex(summary); m != nil {
		head = strings.TrimSpace(summary[:m[0]])
	}
	brand, model := splitBrandModel(head)
	rec.Brand = brand
	rec.Model = model
	return rec
}

func splitBrandModel(head string) (string, string) {
	var first, rest string
	if idx := strings.Index(head, "/"); idx >= 0 {
		first = head[:idx]
		rest = head[idx+1:]
	} else {
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return "", ""
		}
		first = fields[0]
		rest = strings.Join(fields[1:], " ")
	}
	first = strings.TrimSpace(first)
	if _, ok := brandVocabulary[strings.ToLower(first)]; !ok {
		// Unknown make: keep the whole head as model, invent nothing.
		return "", strings.TrimSpace(head)
	}
	return first, strings.TrimSpace(rest)
}
