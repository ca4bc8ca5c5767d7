// Package migrations holds the SQL schema of the audit database.
package migrations

import "embed"

// FS contains the numbered migration files, at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
