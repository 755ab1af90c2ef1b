// Package migrations embeds the SQL schema for the broker's journal store.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS holds the migration files at its root, ready for database.Migrate.
var FS = files
