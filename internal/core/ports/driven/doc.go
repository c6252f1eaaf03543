// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document registry and lifecycle persistence
//   - IndexStore: Pages, entities, relationships and browse cache
//   - BatchStore: Batch finalize from a staging area
//   - StagingStore: Intermediate storage for the batch pipeline
//   - SettingsStore: Runtime processing settings
//   - SchedulerStore: Task state and maintenance history
//   - Extractor / ExtractorRegistry: Per-format text extraction
//   - NLPLoader: Builds an NLPCapability per worker
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, chunks are
//     stored without vectors and the embed phase is skipped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
