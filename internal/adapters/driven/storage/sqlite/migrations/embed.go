// Package migrations holds the numbered schema files applied by sqlite.Store.
// Files are named NNN_name.up.sql; down files are kept for manual rollback.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
