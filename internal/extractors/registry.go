package extractors

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/extractors/eml"
	"github.com/custodia-labs/redleaf/internal/extractors/html"
	"github.com/custodia-labs/redleaf/internal/extractors/pdf"
	"github.com/custodia-labs/redleaf/internal/extractors/plaintext"
	"github.com/custodia-labs/redleaf/internal/extractors/srt"
)

var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file types to extractors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.FileType]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.FileType]driven.Extractor),
	}
}

// NewDefaultRegistry creates a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(plaintext.New())
	r.Register(html.New())
	r.Register(srt.New())
	r.Register(eml.New())
	return r
}

// Register adds an extractor for each of its supported types.
// A later registration for the same type replaces the earlier one.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ft := range e.SupportedTypes() {
		r.extractors[ft] = e
	}
}

// Get returns the extractor for a file type.
func (r *Registry) Get(fileType domain.FileType) (driven.Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[fileType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, fileType)
	}
	return e, nil
}

// Extract dispatches to the extractor registered for fileType.
func (r *Registry) Extract(
	ctx context.Context, path string, fileType domain.FileType, opts domain.ExtractOptions,
) (*domain.Extraction, error) {
	e, err := r.Get(fileType)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, path, opts)
}

// PageReader returns the extractor for fileType when it can read page
// ranges directly from the source file.
func (r *Registry) PageReader(fileType domain.FileType) (driven.PageReader, bool) {
	e, err := r.Get(fileType)
	if err != nil {
		return nil, false
	}
	pr, ok := e.(driven.PageReader)
	return pr, ok
}
