package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func newTestServer(t *testing.T, coord *mockCoordinator, docs *mockDocumentService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Coordinator: coord, Document: docs})
	require.NoError(t, err)
	return server
}

func TestServer_handleEnqueue(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   EnqueueInput
		wantKey string
		wantErr error
	}{
		{"process", EnqueueInput{Kind: "process", DocID: 7}, "process:7", nil},
		{"case insensitive", EnqueueInput{Kind: "Discover"}, "discover", nil},
		{"cache", EnqueueInput{Kind: "cache"}, "cache", nil},
		{"process without id", EnqueueInput{Kind: "process"}, "", domain.ErrInvalidInput},
		{"unknown kind", EnqueueInput{Kind: "reindex"}, "", domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{}
			server := newTestServer(t, coord, &mockDocumentService{})

			_, output, err := server.handleEnqueue(ctx, nil, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, coord.tasks)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, output.Key)
			assert.Equal(t, 1, output.QueueDepth)
		})
	}

	t.Run("queue closed", func(t *testing.T) {
		server := newTestServer(t, &mockCoordinator{err: domain.ErrQueueClosed}, &mockDocumentService{})
		_, _, err := server.handleEnqueue(ctx, nil, EnqueueInput{Kind: "cache"})
		assert.ErrorIs(t, err, domain.ErrQueueClosed)
	})
}

func TestServer_handleStatus(t *testing.T) {
	coord := &mockCoordinator{status: domain.CoordinatorStatus{
		Running:         true,
		QueueDepth:      3,
		InFlightProcess: 2,
		MaxWorkers:      2,
		Pool:            domain.PoolStateReady,
		ProcessFailed:   1,
		LastError:       "boom",
	}}
	docs := &mockDocumentService{counts: []domain.StatusCount{
		{Status: domain.StatusNew, Count: 4},
		{Status: domain.StatusIndexed, Count: 9},
	}}
	server := newTestServer(t, coord, docs)

	_, output, err := server.handleStatus(context.Background(), nil, StatusInput{})
	require.NoError(t, err)

	assert.True(t, output.Running)
	assert.Equal(t, 3, output.QueueDepth)
	assert.Equal(t, 2, output.InFlightProcess)
	assert.Equal(t, "ready", output.Pool)
	assert.Equal(t, 1, output.ProcessFailed)
	assert.Equal(t, "boom", output.LastError)
	assert.Equal(t, map[string]int{"New": 4, "Indexed": 9}, output.Documents)
}

func TestServer_handleExtractText(t *testing.T) {
	ctx := context.Background()

	t.Run("passes page bounds", func(t *testing.T) {
		docs := &mockDocumentService{
			document: &domain.Document{ID: 1, RelativePath: "a.pdf", FileType: domain.FileTypePDF},
			text:     "page two",
		}
		server := newTestServer(t, &mockCoordinator{}, docs)

		start, end := 2, 3
		_, output, err := server.handleExtractText(ctx, nil, ExtractTextInput{Path: "a.pdf", StartPage: &start, EndPage: &end})
		require.NoError(t, err)

		assert.Equal(t, "a.pdf", output.Path)
		assert.Equal(t, "PDF", output.FileType)
		assert.Equal(t, "page two", output.Text)
		require.NotNil(t, docs.startPage)
		assert.Equal(t, 2, *docs.startPage)
		assert.Equal(t, 3, *docs.endPage)
	})

	t.Run("unknown path", func(t *testing.T) {
		server := newTestServer(t, &mockCoordinator{}, &mockDocumentService{})
		_, _, err := server.handleExtractText(ctx, nil, ExtractTextInput{Path: "missing.txt"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matching pages", func(t *testing.T) {
		docs := &mockDocumentService{pages: []domain.Page{
			{DocID: 3, PageNumber: 2, Text: "Alice met Bob in Paris."},
		}}
		server := newTestServer(t, &mockCoordinator{}, docs)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "Paris", Limit: 5})
		require.NoError(t, err)

		assert.Equal(t, 1, output.Count)
		assert.Equal(t, int64(3), output.Results[0].DocumentID)
		assert.Equal(t, 2, output.Results[0].PageNumber)
		assert.Equal(t, 5, docs.searchLimit)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		docs := &mockDocumentService{}
		server := newTestServer(t, &mockCoordinator{}, docs)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, docs.searchLimit)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		server := newTestServer(t, &mockCoordinator{}, &mockDocumentService{err: errors.New("search failed")})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleEntities(t *testing.T) {
	docs := &mockDocumentService{browse: []domain.BrowseEntry{
		{EntityID: 1, Text: "Alice", Label: "PERSON", DocumentCount: 2, AppearanceCount: 5},
	}}
	server := newTestServer(t, &mockCoordinator{}, docs)

	_, output, err := server.handleEntities(context.Background(), nil, EntitiesInput{Label: "person"})
	require.NoError(t, err)

	assert.Equal(t, "person", docs.browseLabel)
	assert.Equal(t, 50, docs.browseLimit)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, EntityOutput{Text: "Alice", Label: "PERSON", Documents: 2, Appearances: 5}, output.Entities[0])
}
