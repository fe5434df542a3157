// Package migrations embeds the SQLite schema migrations so the hot in-memory
// database can be migrated at every boot without touching the filesystem.
package migrations

import "embed"

//go:embed sqlite/*.sql
var FS embed.FS
