package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// Extractor turns a source file of one or more types into pages of text.
type Extractor interface {
	// Extract reads the file at path.
	// Failures wrap domain.ErrExtraction.
	Extract(ctx context.Context, path string, opts domain.ExtractOptions) (*domain.Extraction, error)

	// SupportedTypes returns the file types this extractor handles.
	SupportedTypes() []domain.FileType
}

// PageReader reads a page range straight from a paginated source file.
type PageReader interface {
	// ReadPages returns page texts for the inclusive range, clamped to
	// the file's page count. Empty pages are omitted.
	ReadPages(ctx context.Context, path string, start, end int) ([]domain.Page, error)
}

// ExtractorRegistry selects an extractor by file type.
type ExtractorRegistry interface {
	// Register adds an extractor for all its supported types.
	Register(e Extractor)

	// Get returns the extractor for a file type.
	// Returns domain.ErrUnsupportedType when none is registered.
	Get(fileType domain.FileType) (Extractor, error)

	// Extract dispatches to the extractor for fileType.
	Extract(ctx context.Context, path string, fileType domain.FileType, opts domain.ExtractOptions) (*domain.Extraction, error)

	// PageReader returns the page reader for a paginated file type.
	PageReader(fileType domain.FileType) (PageReader, bool)
}
