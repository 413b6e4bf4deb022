package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves a document location under the source's rate policy.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) (SourceDocument, error)
}

// Discoverer produces the deduplicated, order-stable candidate set for one
// configured source.
type Discoverer interface {
	Discover(ctx context.Context, mode RunMode) ([]Location, error)
}

// Classifier assigns a structural family to a fetched document. Total: every
// document maps to exactly one family. The version is recorded on
// classification quarantine entries so terminal families can be re-processed
// when the heuristics change.
type Classifier interface {
	Classify(doc SourceDocument) Family
	Version() string
}

// Extractor turns a raw document into candidate records. Partial success is
// allowed; per-row failures come back alongside the extracted rows.
type Extractor interface {
	Family() Family
	Version() string
	Extract(doc SourceDocument) ([]CandidateRecord, []ExtractionError)
}

// Normalizer maps a candidate record onto the canonical contract.
type Normalizer interface {
	Normalize(rec CandidateRecord) (CanonicalRecord, error)
	Version() string
}

// QuarantineSink records failures with their original payload. Append-only.
type QuarantineSink interface {
	Quarantine(ctx context.Context, entry QuarantineEntry) error
}

// Emitter writes canonical records to the valid sink, upserting by
// InternalID rather than inserting blindly.
type Emitter interface {
	Emit(ctx context.Context, rec CanonicalRecord) error
}

// TombstoneStore persists permanently-skipped locations across runs.
type TombstoneStore interface {
	IsTombstoned(url string) bool
	Tombstone(url string, statusCode int) error
}

// ProcessedIndex maps content hashes to outcomes so re-processing an
// unchanged document is a no-op.
type ProcessedIndex interface {
	Lookup(hash string) (ProcessedFile, bool)
	Record(entry ProcessedFile) error
}

// ArchiveStore keeps raw fetched documents, keyed by content hash, so
// quarantined documents can be re-extracted without refetching.
type ArchiveStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for identity and deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and quarantine entry IDs.
type IDGenerator interface {
	NewID() (string, error)
}
