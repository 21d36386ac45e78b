// Package migrations embeds the schema of the local SQLite stores.
package migrations

import "embed"

// FS holds every migration file.
//
//go:embed *.sql
var FS embed.FS
