package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// DocumentStore persists the document registry and lifecycle state.
// Backed by SQLite.
type DocumentStore interface {
	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if the document does not exist.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// GetDocumentByPath retrieves a document by its relative path.
	// Returns domain.ErrNotFound if the document does not exist.
	GetDocumentByPath(ctx context.Context, relativePath string) (*domain.Document, error)

	// ListDocuments returns documents ordered by id.
	// An empty status returns every document.
	ListDocuments(ctx context.Context, status domain.Status) ([]domain.Document, error)

	// FileHashes returns relative path to file hash for every registered document.
	FileHashes(ctx context.Context) (map[string]string, error)

	// UpsertDocument registers a file, or re-registers a changed one.
	// The document is (re)set to StatusNew with the given message.
	UpsertDocument(ctx context.Context, file domain.DocumentFile, message string) (int64, error)

	// SetStatus updates a document's status and message.
	// The message is truncated to domain.MaxStatusMessageLength.
	SetStatus(ctx context.Context, id int64, status domain.Status, message string) error

	// ResetInterrupted moves Queued and Indexing documents back to New
	// and returns their ids.
	ResetInterrupted(ctx context.Context, message string) ([]int64, error)

	// ResetDocument clears a document's derived rows and sets it to New.
	ResetDocument(ctx context.Context, id int64, message string) error

	// CountByStatus returns the number of documents per status.
	CountByStatus(ctx context.Context) ([]domain.StatusCount, error)
}
