package migrations

import "embed"

// FS contains the embedded SQLite migrations for the validity store.
//
//go:embed *.sql
var FS embed.FS
