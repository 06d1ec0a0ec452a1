package migrations

import "embed"

// FS contains the embedded PostgreSQL migrations for the validity store.
//
//go:embed *.sql
var FS embed.FS
