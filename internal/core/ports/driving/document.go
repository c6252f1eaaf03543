package driving

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// DocumentService reads documents and their derived data.
type DocumentService interface {
	// List returns documents, optionally filtered by status.
	List(ctx context.Context, status domain.Status) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// GetByPath retrieves a document by its relative path.
	GetByPath(ctx context.Context, relativePath string) (*domain.Document, error)

	// Counts returns the number of documents per status.
	Counts(ctx context.Context) ([]domain.StatusCount, error)

	// ExtractTextForCopying returns display text for a page range.
	// PDF pages are read from the file; other types from the index.
	ExtractTextForCopying(ctx context.Context, relativePath string, fileType domain.FileType, startPage, endPage *int) (string, error)

	// Entities returns the distinct entities appearing in a document.
	Entities(ctx context.Context, id int64) ([]domain.Entity, error)

	// Relationships returns a document's relationships.
	Relationships(ctx context.Context, id int64) ([]domain.Relationship, error)

	// Search runs a full-text query over indexed pages.
	Search(ctx context.Context, query string, limit int) ([]domain.Page, error)

	// Browse reads the entity-frequency cache.
	Browse(ctx context.Context, label string, limit int) ([]domain.BrowseEntry, error)

	// Reset clears a document's derived rows and sets it to New.
	Reset(ctx context.Context, id int64) error

	// ResetErrors resets every document in Error and returns how many.
	ResetErrors(ctx context.Context) (int, error)
}
