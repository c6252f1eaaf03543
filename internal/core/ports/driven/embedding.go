// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService turns entity chunk text into vectors. It is optional:
// without one, embedding chunks are stored with a NULL vector. Failures
// wrap domain.ErrEmbeddingUnavailable when the provider cannot be reached.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result is index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// Zero until the first successful call for providers that discover it.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping checks the provider is reachable without embedding anything.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
