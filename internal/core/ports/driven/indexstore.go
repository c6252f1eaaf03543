package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// IndexStore persists the rows derived from processing a document.
type IndexStore interface {
	// ReplaceDerived atomically deletes a document's derived rows, inserts
	// the new ones and marks the document Indexed with the given message.
	// On error no derived row of the document is changed.
	ReplaceDerived(ctx context.Context, docID int64, data *domain.DerivedData, message string) error

	// Pages returns stored page text ordered by page number.
	// When start and end are both set and start <= end, the range is inclusive.
	// Otherwise, when start is set, exactly that page is returned.
	// Otherwise all pages are returned.
	Pages(ctx context.Context, docID int64, start, end *int) ([]domain.Page, error)

	// DocumentEntities returns the distinct entities appearing in a document.
	DocumentEntities(ctx context.Context, docID int64) ([]domain.Entity, error)

	// Appearances returns a document's appearances keyed by entity.
	Appearances(ctx context.Context, docID int64) ([]domain.Appearance, error)

	// Relationships returns a document's relationships keyed by entity.
	Relationships(ctx context.Context, docID int64) ([]domain.Relationship, error)

	// Cues returns a subtitle document's cues ordered by sequence.
	Cues(ctx context.Context, docID int64) ([]domain.Cue, error)

	// EmailMetadata returns a mail document's headers.
	// Returns domain.ErrNotFound if none were stored.
	EmailMetadata(ctx context.Context, docID int64) (*domain.EmailMetadata, error)

	// EmbeddingChunks returns a document's chunks ordered by page.
	EmbeddingChunks(ctx context.Context, docID int64) ([]domain.EmbeddingChunk, error)

	// SearchPages runs a full-text query over stored pages.
	SearchPages(ctx context.Context, query string, limit int) ([]domain.Page, error)

	// RebuildBrowseCache recomputes the entity-frequency cache for the
	// browse labels and returns the number of rows written.
	RebuildBrowseCache(ctx context.Context) (int, error)

	// BrowseEntries reads the browse cache ordered by document count.
	// An empty label returns all labels.
	BrowseEntries(ctx context.Context, label string, limit int) ([]domain.BrowseEntry, error)
}

// FinalizeStats summarises a batch finalize.
type FinalizeStats struct {
	Documents     int
	Entities      int
	Appearances   int
	Relationships int
	Chunks        int
	OrphansPruned int
	BrowseRows    int
}

// BatchStore applies staged batch results to production tables.
type BatchStore interface {
	// RecordExtraction stores per-document extraction metadata (page count,
	// duration, cues, mail headers) produced by the extract phase.
	RecordExtraction(ctx context.Context, docID int64, ext *domain.Extraction) error

	// FinalizeBatch moves staged pages, entities, appearances, relationships
	// and chunks from the staging database at stagingPath into production in
	// one transaction, marks the staged documents Indexed, prunes orphan
	// entities and rebuilds the browse cache.
	FinalizeBatch(ctx context.Context, stagingPath string, fullRebuild bool) (*FinalizeStats, error)

	// CommitEmbeddings copies vectors of embedded staged chunks onto the
	// production chunks with the same id. Returns rows updated.
	CommitEmbeddings(ctx context.Context, stagingPath string) (int, error)
}
