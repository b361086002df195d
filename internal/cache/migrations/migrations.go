package migrations

import "embed"

// FS holds the message cache schema.
//
//go:embed *.sql
var FS embed.FS
