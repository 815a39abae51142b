// internal/adapters/db/embed.go
package db

import "embed"

// EmbeddedMigrations holds the schema migration files compiled into the
// binary, so deployments never depend on a migrations directory being
// present on disk.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
