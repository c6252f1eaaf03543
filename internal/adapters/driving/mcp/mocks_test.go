package mcp

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// mockCoordinator is a mock implementation of driving.Coordinator.
type mockCoordinator struct {
	tasks  []domain.Task
	status domain.CoordinatorStatus
	err    error
}

func (m *mockCoordinator) Enqueue(_ context.Context, task domain.Task) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockCoordinator) QueueDepth() int {
	return len(m.tasks)
}

func (m *mockCoordinator) Status() domain.CoordinatorStatus {
	return m.status
}

func (m *mockCoordinator) RequestRestart() {}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	counts    []domain.StatusCount
	text      string
	pages     []domain.Page
	browse    []domain.BrowseEntry
	err       error
	textErr   error

	// Captured arguments.
	startPage, endPage *int
	browseLabel        string
	browseLimit        int
	searchLimit        int
}

func (m *mockDocumentService) List(_ context.Context, _ domain.Status) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ int64) (*domain.Document, error) {
	if m.document == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, m.err
}

func (m *mockDocumentService) GetByPath(ctx context.Context, _ string) (*domain.Document, error) {
	return m.Get(ctx, 0)
}

func (m *mockDocumentService) Counts(_ context.Context) ([]domain.StatusCount, error) {
	return m.counts, m.err
}

func (m *mockDocumentService) ExtractTextForCopying(
	_ context.Context,
	_ string,
	_ domain.FileType,
	startPage, endPage *int,
) (string, error) {
	m.startPage, m.endPage = startPage, endPage
	if m.textErr != nil {
		return "", m.textErr
	}
	return m.text, m.err
}

func (m *mockDocumentService) Entities(_ context.Context, _ int64) ([]domain.Entity, error) {
	return nil, m.err
}

func (m *mockDocumentService) Relationships(_ context.Context, _ int64) ([]domain.Relationship, error) {
	return nil, m.err
}

func (m *mockDocumentService) Search(_ context.Context, _ string, limit int) ([]domain.Page, error) {
	m.searchLimit = limit
	return m.pages, m.err
}

func (m *mockDocumentService) Browse(_ context.Context, label string, limit int) ([]domain.BrowseEntry, error) {
	m.browseLabel, m.browseLimit = label, limit
	return m.browse, m.err
}

func (m *mockDocumentService) Reset(_ context.Context, _ int64) error {
	return m.err
}

func (m *mockDocumentService) ResetErrors(_ context.Context) (int, error) {
	return 0, m.err
}
