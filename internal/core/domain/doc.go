// Package domain defines the core business entities for Redleaf.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A registered source file and its lifecycle status
//   - Page: An addressable unit of extracted text
//   - Entity, Appearance, Relationship: The metadata index
//   - Cue: A single subtitle cue
//   - EmbeddingChunk: An entity-anchored unit of semantic search content
//   - Task: The tagged union of coordinator work items
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
