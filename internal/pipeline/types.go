// Package pipeline defines core types shared across ingestion subsystems.
package pipeline

import (
	"encoding/json"
	"net/http"
	"time"
)

// Family is the structural classification of a fetched document. It selects
// which extractor, if any, applies.
type Family string

// Structural families assigned by the classifier.
const (
	FamilyTableStart  Family = "table_start"
	FamilyTableLate   Family = "table_late"
	FamilyNativeText  Family = "native_text"
	FamilyHTMLListing Family = "html_listing"
	FamilyScanned     Family = "scanned"
	FamilyCorrupted   Family = "corrupted"
	FamilyUnsupported Family = "unsupported"
)

// Extractable reports whether documents of this family have an extractor.
// Scanned and unsupported documents go straight to quarantine.
func (f Family) Extractable() bool {
	switch f {
	case FamilyScanned, FamilyCorrupted, FamilyUnsupported:
		return false
	default:
		return true
	}
}

// PublicationStatus is the lifecycle state of a canonical record. It is
// computed once per normalization pass and never mutated downstream.
type PublicationStatus string

// Lifecycle states assigned by the vendability gate.
const (
	StatusDraft       PublicationStatus = "draft"
	StatusValid       PublicationStatus = "valid"
	StatusNotSellable PublicationStatus = "not_sellable"
	StatusRejected    PublicationStatus = "rejected"
)

// SourceDocument is the immutable raw result of a successful fetch.
type SourceDocument struct {
	URL         string      `json:"url"`
	Body        []byte      `json:"-"`
	ContentType string      `json:"content_type"`
	StatusCode  int         `json:"status_code"`
	FetchedAt   time.Time   `json:"fetched_at"`
	ContentHash string      `json:"content_hash"`
	Source      string      `json:"source"`
	Headers     http.Header `json:"-"`
}

// Provenance records where a candidate field value came from, down to the
// page and row, so every canonical record is auditable back to its source.
type Provenance struct {
	SourceURL        string  `json:"source_url"`
	SourceFile       string  `json:"source_file,omitempty"`
	Page             int     `json:"page,omitempty"`
	Row              int     `json:"row,omitempty"`
	ExtractorFamily  Family  `json:"extractor_family"`
	ExtractorVersion string  `json:"extractor_version"`
	Confidence       float64 `json:"confidence"`
	TitleOnly        bool    `json:"title_only,omitempty"`
}

// CandidateRecord holds raw, unvalidated field values produced by an
// extractor. Fields are named and optional; absence is the zero value. It is
// consumed exactly once by the normalizer.
type CandidateRecord struct {
	LotNumber     string `json:"numero_lote,omitempty"`
	ProcessNumber string `json:"numero_processo,omitempty"`
	AuctionID     string `json:"leilao_id,omitempty"`
	Entity        string `json:"comitente,omitempty"`
	Description   string `json:"descricao,omitempty"`
	Title         string `json:"objeto_resumido,omitempty"`
	Valuation     string `json:"valor_avaliacao,omitempty"`
	Plate         string `json:"placa,omitempty"`
	Chassis       string `json:"chassi,omitempty"`
	Registration  string `json:"renavam,omitempty"`
	Brand         string `json:"marca,omitempty"`
	Model         string `json:"modelo,omitempty"`
	Year          string `json:"ano,omitempty"`
	City          string `json:"cidade,omitempty"`
	State         string `json:"uf,omitempty"`
	AuctionDate   string `json:"data_leilao,omitempty"`
	PublishedDate string `json:"data_publicacao,omitempty"`
	SourceURL     string `json:"url_fonte,omitempty"`
	NoticeURL     string `json:"url_edital,omitempty"`
	Category      string `json:"categoria,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// CanonicalRecord is the contract-compliant output record. Once assigned,
// InternalID never changes across re-runs for the same logical auction/lot.
type CanonicalRecord struct {
	InternalID     string            `json:"id_interno"`
	City           string            `json:"cidade"`
	State          string            `json:"uf"`
	AuctionDate    string            `json:"data_leilao"`
	PublishedDate  string            `json:"data_publicacao"`
	SourceURL      string            `json:"url_fonte"`
	NoticeURL      string            `json:"url_edital,omitempty"`
	Title          string            `json:"objeto_resumido"`
	Description    string            `json:"descricao"`
	Entity         string            `json:"comitente"`
	Tags           []string          `json:"tags"`
	EstimatedValue int64             `json:"valor_estimado_centavos"`
	Status         PublicationStatus `json:"publication_status"`
	Provenance     Provenance        `json:"provenance"`
}

// Stage identifies where in the pipeline a failure happened.
type Stage string

// Pipeline stages recorded on quarantine entries and run counters.
const (
	StageFetch          Stage = "fetch"
	StageClassification Stage = "classification"
	StageExtraction     Stage = "extraction"
	StageValidation     Stage = "validation"
	StagePersistence    Stage = "persistence"
)

// ResolutionStatus tracks manual triage of a quarantine entry.
type ResolutionStatus string

// Resolution states for quarantine entries.
const (
	ResolutionPending   ResolutionStatus = "pending"
	ResolutionResolved  ResolutionStatus = "resolved"
	ResolutionDiscarded ResolutionStatus = "discarded"
)

// QuarantineEntry is an append-only dead-letter record.
type QuarantineEntry struct {
	ID              string           `json:"id"`
	RunID           string           `json:"run_id"`
	Stage           Stage            `json:"stage"`
	Code            ErrorCode        `json:"code"`
	Detail          string           `json:"detail"`
	Payload         json.RawMessage  `json:"payload"`
	ProducerVersion string           `json:"producer_version"`
	CreatedAt       time.Time        `json:"created_at"`
	Resolution      ResolutionStatus `json:"resolution"`
}

// Outcome summarizes what happened to a processed document, keyed by content
// hash in the ProcessedFileIndex.
type Outcome string

// Document outcomes recorded in the processed-file index.
const (
	OutcomeExtracted   Outcome = "extracted"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeSkipped     Outcome = "skipped_duplicate"
)

// ProcessedFile records the outcome of a single document by content hash.
// Re-processing an unchanged document is a no-op.
type ProcessedFile struct {
	ContentHash string    `json:"content_hash"`
	URL         string    `json:"url"`
	Outcome     Outcome   `json:"outcome"`
	Records     int       `json:"records"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Location is a candidate document location produced by discovery.
type Location struct {
	URL      string    `json:"url"`
	Source   string    `json:"source"`
	SeenAt   time.Time `json:"seen_at,omitempty"`
	Category string    `json:"category,omitempty"`
}

// RunMode selects how much of a source index discovery walks.
type RunMode string

// Discovery modes.
const (
	ModeIncremental RunMode = "incremental"
	ModeFull        RunMode = "full"
)

// RunReport is the per-run summary written to the log and the publisher.
type RunReport struct {
	RunID            string            `json:"run_id"`
	Mode             RunMode           `json:"mode"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	Discovered       int               `json:"discovered"`
	Fetched          int               `json:"fetched"`
	FetchFailures    int               `json:"fetch_failures"`
	Tombstoned       int               `json:"tombstoned"`
	Extracted        int               `json:"extracted"`
	Valid            int               `json:"valid"`
	NotSellable      int               `json:"not_sellable"`
	Rejected         int               `json:"rejected"`
	Drafts           int               `json:"drafts"`
	QuarantineByCode map[ErrorCode]int `json:"quarantine_by_code"`
}

// Duration is the wall-clock length of the run.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
