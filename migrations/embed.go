package migrations

import "embed"

// FS holds the SQL migrations applied on startup.
//
//go:embed *.sql
var FS embed.FS
