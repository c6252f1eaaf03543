package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// StagingStore holds intermediate batch pipeline data, separate from
// production tables.
type StagingStore interface {
	// Path returns the location of the staging database.
	Path() string

	// Reset drops and recreates all staging tables.
	Reset(ctx context.Context) error

	// Drop removes all staging tables.
	Drop(ctx context.Context) error

	// StageDocument records a successfully extracted document and its pages.
	// A document with no pages is still staged.
	StageDocument(ctx context.Context, docID int64, pages []domain.StagedPage) error

	// CountPages returns the number of staged pages.
	CountPages(ctx context.Context) (int, error)

	// Pages returns all staged pages ordered by document and page.
	Pages(ctx context.Context) ([]domain.StagedPage, error)

	// DocIDs returns the staged documents in ascending order.
	DocIDs(ctx context.Context) ([]int64, error)

	// InsertEntities stages entity occurrences.
	InsertEntities(ctx context.Context, entities []domain.StagedEntity) error

	// InsertRelationships stages relationships.
	InsertRelationships(ctx context.Context, rels []domain.StagedRelationship) error

	// InsertChunks stages embedding candidates.
	InsertChunks(ctx context.Context, chunks []domain.StagedChunk) error

	// CountChunks returns the number of staged chunks.
	CountChunks(ctx context.Context) (int, error)

	// Chunks returns staged chunks that have no embedding yet.
	Chunks(ctx context.Context) ([]domain.StagedChunk, error)

	// SetEmbeddings stores vectors for staged chunks by chunk id.
	SetEmbeddings(ctx context.Context, vectors map[string][]float32) error

	// Close releases the database handle.
	Close() error
}
