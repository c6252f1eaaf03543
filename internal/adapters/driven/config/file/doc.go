// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - LoadAppConfig: typed application configuration from the store, a .env
//     file and REDLEAF_* environment variables
package file
