package quarantine

import (
	"context"
	"errors"

	"github.com/arremate/ingestor/internal/pipeline"
)

// MultiSink fans one entry out to several quarantine sinks.
type MultiSink struct {
	sinks []pipeline.QuarantineSink
}

// Multi combines sinks into one. Nil entries are skipped.
func Multi(sinks ...pipeline.QuarantineSink) *MultiSink {
	out := make([]pipeline.QuarantineSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Quarantine writes the entry to all sinks.
func (m *MultiSink) Quarantine(ctx context.Context, entry pipeline.QuarantineEntry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Quarantine(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
