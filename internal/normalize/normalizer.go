// Package normalize maps candidate records onto the canonical contract:
// deterministic identity, strict date and URL formatting, the closed tag
// vocabulary, and the vendability gate.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/arremate/ingestor/internal/extract"
	"github.com/arremate/ingestor/internal/pipeline"
)

// Version tags every canonical record and quarantine entry this normalizer
// produces, so superseded entries can be re-processed selectively.
const Version = "normalizer/3.1"

var canonicalDateExpr = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)

// Config tunes the normalizer.
type Config struct {
	// AllowedDomains upgrades provenance confidence for known hosts. It is
	// never required for acceptance.
	AllowedDomains []string
}

// Normalizer implements pipeline.Normalizer.
type Normalizer struct {
	hasher  pipeline.Hasher
	allowed map[string]struct{}
}

// New constructs a Normalizer.
func New(hasher pipeline.Hasher, cfg Config) *Normalizer {
	allowed := make(map[string]struct{}, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &Normalizer{hasher: hasher, allowed: allowed}
}

// Version returns the normalizer version.
func (n *Normalizer) Version() string {
	return Version
}

// Normalize applies, in order: identity computation, date formatting, URL
// normalization, the vendability gate, and tag normalization. It errors only
// when the candidate carries nothing to normalize; field-level defects
// degrade the lifecycle state instead.
func (n *Normalizer) Normalize(rec pipeline.CandidateRecord) (pipeline.CanonicalRecord, error) {
	if rec.Title == "" && rec.Description == "" && rec.LotNumber == "" {
		return pipeline.CanonicalRecord{}, pipeline.ValidationError{
			Code:   pipeline.CodeMandatoryFieldMissing,
			Detail: "candidate carries no identifying or descriptive fields",
		}
	}

	out := pipeline.CanonicalRecord{
		City:        strings.TrimSpace(rec.City),
		State:       strings.ToUpper(strings.TrimSpace(rec.State)),
		Title:       strings.TrimSpace(rec.Title),
		Description: strings.TrimSpace(rec.Description),
		Entity:      strings.TrimSpace(rec.Entity),
		Provenance:  rec.Provenance,
	}
	if out.Title == "" {
		out.Title = out.Description
	}

	// 1. Identity: a pure function of stable source-identifying fields.
	id, identityOK, err := n.identity(rec)
	if err != nil {
		return pipeline.CanonicalRecord{}, err
	}
	out.InternalID = id

	// 2. Dates: exactly DD-MM-YYYY; anything else is rejected, not
	// reformatted.
	out.AuctionDate = canonicalDate(rec.AuctionDate)
	out.PublishedDate = canonicalDate(rec.PublishedDate)

	// 3. URLs: scheme-qualified or dropped.
	out.SourceURL = n.normalizeRecordURL(rec.SourceURL, &out)
	out.NoticeURL = n.normalizeRecordURL(rec.NoticeURL, &out)

	// 4. Estimated value.
	if rec.Valuation != "" {
		if cents, verr := extract.ParseMoneyCentavos(rec.Valuation); verr == nil {
			out.EstimatedValue = cents
		}
	}

	// 5. Tags: closed vocabulary, unknown classifications dropped.
	out.Tags = normalizeTags(rec)

	out.Status = n.gate(out, identityOK)
	return out, nil
}

// identity derives id_interno from (entity, process/lot, auction date) or,
// failing that, (source host, auction id, lot). It never reads the clock or
// row order. ok is false when only the fallback key was available, which
// rejects the record.
func (n *Normalizer) identity(rec pipeline.CandidateRecord) (string, bool, error) {
	var key string
	switch {
	case rec.Entity != "" && (rec.ProcessNumber != "" || rec.LotNumber != "") && rec.AuctionDate != "":
		key = strings.Join([]string{
			"entity", normalizeKeyPart(rec.Entity),
			normalizeKeyPart(rec.ProcessNumber), normalizeKeyPart(rec.LotNumber),
			rec.AuctionDate,
		}, "|")
	case rec.SourceURL != "" && rec.AuctionID != "" && rec.LotNumber != "":
		key = strings.Join([]string{
			"source", hostOf(rec.SourceURL),
			normalizeKeyPart(rec.AuctionID), normalizeKeyPart(rec.LotNumber),
		}, "|")
	default:
		// Fallback keeps the identity deterministic so re-runs converge on
		// the same rejected record instead of multiplying it.
		key = strings.Join([]string{
			"fallback", hostOf(rec.SourceURL),
			normalizeKeyPart(rec.LotNumber), normalizeKeyPart(rec.Title),
			normalizeKeyPart(rec.Description),
		}, "|")
		digest, err := n.hasher.Hash([]byte(key))
		if err != nil {
			return "", false, fmt.Errorf("hash identity key: %w", err)
		}
		return "lot-" + digest[:16], false, nil
	}
	digest, err := n.hasher.Hash([]byte(key))
	if err != nil {
		return "", false, fmt.Errorf("hash identity key: %w", err)
	}
	return "lot-" + digest[:16], true, nil
}

// gate computes the lifecycle state once per normalization pass. Downstream
// consumers never mutate it; re-extraction re-evaluates the same identity.
func (n *Normalizer) gate(out pipeline.CanonicalRecord, identityOK bool) pipeline.PublicationStatus {
	if !identityOK {
		return pipeline.StatusRejected
	}
	complete := out.City != "" &&
		out.State != "" &&
		out.AuctionDate != "" &&
		out.PublishedDate != "" &&
		out.SourceURL != "" &&
		out.Title != "" &&
		out.Description != "" &&
		out.Entity != "" &&
		len(out.Tags) > 0 &&
		out.EstimatedValue > 0
	if complete {
		return pipeline.StatusValid
	}
	// Sellability hinges on date, value, and location; without them the lot
	// cannot be offered. Softer gaps leave the record a draft.
	sellable := out.AuctionDate != "" &&
		out.EstimatedValue > 0 &&
		out.City != "" &&
		out.State != ""
	if !sellable {
		return pipeline.StatusNotSellable
	}
	return pipeline.StatusDraft
}

func (n *Normalizer) normalizeRecordURL(raw string, out *pipeline.CanonicalRecord) string {
	if raw == "" {
		return ""
	}
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return ""
	}
	if _, ok := n.allowed[hostOf(normalized)]; ok && out.Provenance.Confidence < 1 {
		out.Provenance.Confidence = minFloat(out.Provenance.Confidence+0.1, 1)
	}
	return normalized
}

// canonicalDate returns the input only if it is exactly DD-MM-YYYY with a
// plausible day and month. Other separators or orderings are formatting
// bugs: the field is dropped, never reinterpreted.
func canonicalDate(raw string) string {
	raw = strings.TrimSpace(raw)
	m := canonicalDateExpr.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return ""
	}
	return raw
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
