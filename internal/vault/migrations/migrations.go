package migrations

import "embed"

// FS holds the vault schema.
//
//go:embed *.sql
var FS embed.FS
