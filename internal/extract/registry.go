package extract

import (
	"github.com/arremate/ingestor/internal/pipeline"
)

// Registry dispatches documents to the extractor registered for their
// family. The set of extractors is closed and fixed at startup.
type Registry struct {
	byFamily map[pipeline.Family]pipeline.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byFamily: make(map[pipeline.Family]pipeline.Extractor)}
}

// Register binds an extractor to a family.
func (r *Registry) Register(family pipeline.Family, e pipeline.Extractor) {
	r.byFamily[family] = e
}

// For returns the extractor for the family, if one exists.
func (r *Registry) For(family pipeline.Family) (pipeline.Extractor, bool) {
	e, ok := r.byFamily[family]
	return e, ok
}

// Default wires the standard extractor set.
func Default() *Registry {
	r := NewRegistry()
	r.Register(pipeline.FamilyTableStart, NewTabular(pipeline.FamilyTableStart))
	r.Register(pipeline.FamilyTableLate, NewTabular(pipeline.FamilyTableLate))
	r.Register(pipeline.FamilyNativeText, NewNativeText())
	r.Register(pipeline.FamilyHTMLListing, NewHTMLTitle())
	return r
}
