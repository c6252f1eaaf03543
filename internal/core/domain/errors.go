package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// Extraction Errors.

	// ErrExtraction indicates a source file could not be read or parsed.
	// Recorded on the document, never raised past the worker boundary.
	ErrExtraction = errors.New("extraction failed")

	// Capability Errors.

	// ErrNLPUnavailable indicates the NLP capability could not be loaded.
	// Fatal at worker initialisation.
	ErrNLPUnavailable = errors.New("NLP capability unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// The embed phase is skipped without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGPUUnavailable indicates GPU access was requested but could not be
	// acquired. Callers fall back to CPU.
	ErrGPUUnavailable = errors.New("GPU unavailable")

	// Coordinator Errors.

	// ErrPoolBroken indicates the worker pool failed and must be rebuilt.
	ErrPoolBroken = errors.New("worker pool broken")

	// ErrPoolBusy indicates every worker slot is taken. The task should be
	// submitted again later.
	ErrPoolBusy = errors.New("worker pool busy")

	// ErrTaskCancelled indicates a submitted task was cancelled by pool teardown
	// before it started.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrQueueClosed indicates the coordinator is not accepting tasks.
	ErrQueueClosed = errors.New("queue closed")

	// ErrAlreadyRunning indicates a maintenance task of the same kind is running.
	ErrAlreadyRunning = errors.New("already running")
)
