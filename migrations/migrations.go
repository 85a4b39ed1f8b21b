// Package migrations holds the SQL schema applied by database.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
