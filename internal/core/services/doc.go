// Package services holds the indexing core: the task coordinator and its
// worker pool, the single-document processor, the batch pipeline, discovery,
// the browse cache, the scheduler and the read-side document service.
//
// Services depend only on domain types and port interfaces. Adapters are
// injected by cmd/redleaf.
package services
