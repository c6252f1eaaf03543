package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for redleaf resources.
	uriScheme = "redleaf://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing documents.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "All registered documents with their lifecycle status",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	// Template for document text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-text",
		Description: "Extracted text of a specific document",
		MIMEType:    "text/plain",
	}, s.handleDocumentTextResource)
}

// documentInfo is the JSON shape of a listed document.
type documentInfo struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	FileType      string    `json:"file_type"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	PageCount     int       `json:"page_count"`
	ProcessedAt   time.Time `json:"processed_at,omitzero"`
}

// handleDocumentsResource returns every registered document.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Document.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]documentInfo, len(docs))
	for i := range docs {
		infos[i] = documentInfo{
			ID:            docs[i].ID,
			Path:          docs[i].RelativePath,
			FileType:      string(docs[i].FileType),
			Status:        string(docs[i].Status),
			StatusMessage: docs[i].StatusMessage,
			PageCount:     docs[i].PageCount,
			ProcessedAt:   docs[i].ProcessedAt,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDocumentTextResource returns the full extracted text of a document.
func (s *Server) handleDocumentTextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract documentId from URI: redleaf://documents/{documentId}
	docID, ok := extractDocumentID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Document.Get(ctx, docID)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if doc.Status != domain.StatusIndexed && doc.FileType != domain.FileTypePDF {
		return nil, fmt.Errorf("document %d is %s, not indexed", doc.ID, doc.Status)
	}

	text, err := s.ports.Document.ExtractTextForCopying(ctx, doc.RelativePath, doc.FileType, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting document text: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like redleaf://documents/{documentId}.
func extractDocumentID(uri string) (int64, bool) {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return 0, false
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
