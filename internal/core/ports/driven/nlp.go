package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// NLPCapability performs sentence segmentation and named-entity recognition.
// An instance is owned by one worker at a time and is not safe for
// concurrent use.
type NLPCapability interface {
	// Analyze segments text into sentences with their entity mentions.
	Analyze(ctx context.Context, text string) (*domain.Analysis, error)

	// Close releases model resources.
	Close() error
}

// NLPLoadOptions configures capability loading.
type NLPLoadOptions struct {
	// UseGPU requests GPU acceleration. Loaders that cannot provide it
	// return a usable capability together with domain.ErrGPUUnavailable.
	UseGPU bool

	// ModelDir optionally points at a model on disk.
	ModelDir string
}

// NLPLoader builds NLP capabilities. It is called once per worker slot.
type NLPLoader interface {
	// Load returns a ready capability. A non-nil capability with
	// domain.ErrGPUUnavailable means CPU fallback.
	Load(ctx context.Context, opts NLPLoadOptions) (NLPCapability, error)
}
