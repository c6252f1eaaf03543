package domain

import "fmt"

// EmbeddingChunk is a unit of semantic-search content anchored to the
// entity whose local context produced it.
type EmbeddingChunk struct {
	ID         string
	DocID      int64
	PageNumber int
	EntityID   int64
	Entity     EntityKey
	Text       string
	Embedding  []float32
}

// MaxChunkContextLength bounds the context phrase of an embedding chunk.
const MaxChunkContextLength = 300

// ChunkText formats the text embedded for an entity mention.
func ChunkText(entity EntityKey, context string) string {
	return fmt.Sprintf("%s (%s): %s", entity.Text, entity.Label, context)
}
