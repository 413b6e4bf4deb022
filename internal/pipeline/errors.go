package pipeline

import "errors"

// ErrorCode is a member of the closed failure taxonomy. The set is stable
// across versions so downstream tooling can be built against it.
type ErrorCode string

// Classification failures. Terminal for this classifier version.
const (
	CodeScannedDocument   ErrorCode = "SCANNED_DOCUMENT"
	CodeUnsupportedType   ErrorCode = "UNSUPPORTED_TYPE"
	CodeCorruptedDocument ErrorCode = "CORRUPTED_DOCUMENT"
)

// Extraction failures. Eligible for re-processing under a newer extractor.
const (
	CodeTableNotFound      ErrorCode = "TABELA_NAO_ENCONTRADA"
	CodeTableHeaderInvalid ErrorCode = "TABELA_SEM_CABECALHO_VALIDO"
	CodeUnexpectedLayout   ErrorCode = "ESTRUTURA_INESPERADA"
)

// Validation failures, per row or record.
const (
	CodeLotNumberMissing       ErrorCode = "NUMERO_LOTE_AUSENTE"
	CodeDescriptionScant       ErrorCode = "DESCRICAO_INSUFICIENTE"
	CodeValueUnparsable        ErrorCode = "VALOR_NAO_PARSEAVEL"
	CodeMandatoryFieldMissing  ErrorCode = "CAMPO_OBRIGATORIO_AUSENTE"
	CodeIdentityUncomputable   ErrorCode = "IDENTIDADE_NAO_COMPUTAVEL"
	CodeDateFormatInvalid      ErrorCode = "DATA_FORMATO_INVALIDO"
	CodeURLInvalid             ErrorCode = "URL_INVALIDA"
)

// Persistence failures. The record was valid; the sink was not.
const (
	CodePersistFailed ErrorCode = "PERSISTENCIA_FALHOU"
)

// QuarantineCode maps a non-extractable family to its classification error
// code. ok is false for families that have an extractor.
func (f Family) QuarantineCode() (ErrorCode, bool) {
	switch f {
	case FamilyScanned:
		return CodeScannedDocument, true
	case FamilyCorrupted:
		return CodeCorruptedDocument, true
	case FamilyUnsupported:
		return CodeUnsupportedType, true
	default:
		return "", false
	}
}

// Sentinel errors shared across stages.
var (
	// ErrNoCandidates signals an empty or unparsable discovery index. It is
	// logged and produces an empty result, never a crashed run.
	ErrNoCandidates = errors.New("no candidate locations found")

	// ErrTombstoned marks a location permanently skipped after a 404/410.
	ErrTombstoned = errors.New("location is tombstoned")

	// ErrBudgetExhausted stops the run once the document budget is spent.
	ErrBudgetExhausted = errors.New("run budget exhausted")
)

// ExtractionError is a per-row or per-document extraction failure. Partial
// success is allowed: one malformed row never aborts the rest of a table.
type ExtractionError struct {
	Code   ErrorCode
	Detail string
	Page   int
	Row    int
}

// Error implements the error interface.
func (e ExtractionError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// ValidationError reports a candidate the normalizer could not map onto the
// canonical contract at all. Field-level problems degrade the lifecycle
// state instead of erroring.
type ValidationError struct {
	Code   ErrorCode
	Detail string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// FetchFailure is a transient fetch error surfaced after retries are
// exhausted. It is reported, never tombstoned, so a future run may retry.
type FetchFailure struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (f *FetchFailure) Error() string {
	if f.Err == nil {
		return "fetch failed: " + f.URL
	}
	return "fetch failed: " + f.URL + ": " + f.Err.Error()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *FetchFailure) Unwrap() error {
	return f.Err
}
