package mcp

import (
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Coordinator accepts tasks and reports queue state.
	Coordinator driving.Coordinator

	// Document reads documents and their derived data.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Coordinator == nil {
		return ErrMissingCoordinator
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}
