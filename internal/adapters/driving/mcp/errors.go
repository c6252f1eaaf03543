// Package mcp provides an MCP (Model Context Protocol) server adapter for redleaf.
// It lets AI assistants queue work, check progress and read extracted text.
package mcp

import "errors"

// ErrMissingCoordinator is returned when the coordinator is not provided.
var ErrMissingCoordinator = errors.New("mcp: coordinator is required")

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")
