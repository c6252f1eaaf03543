package driving

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// Coordinator accepts tasks and reports queue status.
type Coordinator interface {
	// Enqueue adds a task to the back of the queue without blocking.
	// A process task also marks its document Queued.
	Enqueue(ctx context.Context, task domain.Task) error

	// QueueDepth returns the number of tasks waiting.
	QueueDepth() int

	// Status returns a snapshot of the coordinator.
	Status() domain.CoordinatorStatus

	// RequestRestart recreates the worker pool from current settings once
	// nothing is in flight.
	RequestRestart()
}

// Discoverer registers new and changed files from the documents directory.
type Discoverer interface {
	// Discover scans the documents directory once.
	Discover(ctx context.Context) (*domain.DiscoveryReport, error)
}

// CacheBuilder rebuilds the aggregated browse cache.
type CacheBuilder interface {
	// Rebuild recomputes the cache and returns the number of rows written.
	Rebuild(ctx context.Context) (int, error)
}

// BatchPipeline runs the offline bulk indexing path.
type BatchPipeline interface {
	// Run processes every New document through extract, NLP, finalize
	// and embed phases.
	Run(ctx context.Context, opts domain.PipelineOptions) (*domain.PipelineReport, error)
}

// DocumentProcessor runs the single-document path outside the coordinator.
type DocumentProcessor interface {
	// ProcessDocument indexes one document synchronously.
	ProcessDocument(ctx context.Context, docID int64) (*domain.ProcessResult, error)
}
