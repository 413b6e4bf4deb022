package emit

import (
	"context"
	"errors"

	"github.com/arremate/ingestor/internal/pipeline"
)

// MultiSink fans one record out to several emitters. Every sink sees every
// record; errors are joined so a file write still lands when the database is
// down.
type MultiSink struct {
	sinks []pipeline.Emitter
}

// Multi combines emitters into one. Nil entries are skipped.
func Multi(sinks ...pipeline.Emitter) *MultiSink {
	out := make([]pipeline.Emitter, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Emit writes the record to all sinks.
func (m *MultiSink) Emit(ctx context.Context, rec pipeline.CanonicalRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
