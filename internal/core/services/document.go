package services

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// pageSeparator joins pages of copied text.
const pageSeparator = "\n\n"

// DocumentService reads documents and their derived data.
type DocumentService struct {
	docs         driven.DocumentStore
	index        driven.IndexStore
	extractors   driven.ExtractorRegistry
	documentsDir string
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docs driven.DocumentStore,
	index driven.IndexStore,
	extractors driven.ExtractorRegistry,
	documentsDir string,
) *DocumentService {
	return &DocumentService{
		docs:         docs,
		index:        index,
		extractors:   extractors,
		documentsDir: documentsDir,
	}
}

// List returns documents, optionally filtered by status.
func (s *DocumentService) List(ctx context.Context, status domain.Status) ([]domain.Document, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}
	return s.docs.ListDocuments(ctx, status)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, id)
}

// GetByPath retrieves a document by its relative path.
func (s *DocumentService) GetByPath(ctx context.Context, relativePath string) (*domain.Document, error) {
	return s.docs.GetDocumentByPath(ctx, filepath.ToSlash(relativePath))
}

// Counts returns the number of documents per status.
func (s *DocumentService) Counts(ctx context.Context) ([]domain.StatusCount, error) {
	return s.docs.CountByStatus(ctx)
}

// ExtractTextForCopying returns display text for a page range, pages
// separated by a blank line.
//
// PDF pages are read from the file. A start without an end selects one
// page and bounds are clamped to the page count. Other types are read from
// the index; single-block types ignore the bounds.
func (s *DocumentService) ExtractTextForCopying(
	ctx context.Context,
	relativePath string,
	fileType domain.FileType,
	startPage, endPage *int,
) (string, error) {
	relativePath = filepath.ToSlash(relativePath)

	switch {
	case fileType == domain.FileTypePDF:
		return s.copyFromFile(ctx, relativePath, fileType, startPage, endPage)
	case fileType.IsValid():
		return s.copyFromIndex(ctx, relativePath, fileType, startPage, endPage)
	default:
		return "", fmt.Errorf("cannot copy text from %q: %w", fileType, domain.ErrUnsupportedType)
	}
}

func (s *DocumentService) copyFromIndex(
	ctx context.Context,
	relativePath string,
	fileType domain.FileType,
	startPage, endPage *int,
) (string, error) {
	doc, err := s.docs.GetDocumentByPath(ctx, relativePath)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", relativePath, err)
	}

	if fileType.IsSingleBlock() {
		startPage, endPage = nil, nil
	}

	pages, err := s.index.Pages(ctx, doc.ID, startPage, endPage)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

func (s *DocumentService) copyFromFile(
	ctx context.Context,
	relativePath string,
	fileType domain.FileType,
	startPage, endPage *int,
) (string, error) {
	reader, ok := s.extractors.PageReader(fileType)
	if !ok {
		return "", fmt.Errorf("no page reader for %s: %w", fileType, domain.ErrUnsupportedType)
	}

	first, last := 1, math.MaxInt
	if startPage != nil {
		first = max(*startPage, 1)
	}
	switch {
	case endPage != nil:
		last = *endPage
	case startPage != nil:
		last = first
	}
	if first > last {
		return "", nil
	}

	path := filepath.Join(s.documentsDir, filepath.FromSlash(relativePath))
	pages, err := reader.ReadPages(ctx, path, first, last)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

func joinPages(pages []domain.Page) string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, pageSeparator)
}

// Entities returns the distinct entities appearing in a document.
func (s *DocumentService) Entities(ctx context.Context, id int64) ([]domain.Entity, error) {
	if _, err := s.docs.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.index.DocumentEntities(ctx, id)
}

// Relationships returns a document's relationships.
func (s *DocumentService) Relationships(ctx context.Context, id int64) ([]domain.Relationship, error) {
	if _, err := s.docs.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.index.Relationships(ctx, id)
}

// Search runs a full-text query over indexed pages.
func (s *DocumentService) Search(ctx context.Context, query string, limit int) ([]domain.Page, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	return s.index.SearchPages(ctx, query, limit)
}

// Browse reads the entity-frequency cache.
func (s *DocumentService) Browse(ctx context.Context, label string, limit int) ([]domain.BrowseEntry, error) {
	return s.index.BrowseEntries(ctx, strings.ToUpper(label), limit)
}

// Reset clears a document's derived rows and sets it to New.
func (s *DocumentService) Reset(ctx context.Context, id int64) error {
	return s.docs.ResetDocument(ctx, id, domain.MsgReset)
}

// ResetErrors resets every document in Error and returns how many.
func (s *DocumentService) ResetErrors(ctx context.Context) (int, error) {
	docs, err := s.docs.ListDocuments(ctx, domain.StatusError)
	if err != nil {
		return 0, err
	}

	for i, doc := range docs {
		if err := s.docs.ResetDocument(ctx, doc.ID, domain.MsgReset); err != nil {
			return i, fmt.Errorf("resetting document %d: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}
