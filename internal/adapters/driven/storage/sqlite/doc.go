// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection pool:
//
//   - DocumentStore: Document registry and lifecycle state
//   - IndexStore: Pages (FTS5), entities, relationships, cues, chunks, browse cache
//   - BatchStore: Set-based finalize of a staged batch run
//   - SettingsStore: Runtime processing settings
//   - SchedulerStore: Scheduled trigger state and maintenance history
//
// StagingStore is a separate database file used only by the batch pipeline.
// BatchStore reads it by attaching it to a production connection.
//
// # Schema
//
// The production schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Staging tables are dropped and recreated by every batch run.
//
// # Data Location
//
// By default, the databases are stored in ~/.redleaf/data/.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode; transactions acquire the write lock when they begin.
package sqlite
