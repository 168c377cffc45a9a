// Package migrations embeds the SQL migration files for the replica database.
package migrations

import "embed"

// FS contains the goose migration files.
//
//go:embed *.sql
var FS embed.FS
