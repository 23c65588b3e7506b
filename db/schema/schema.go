// Package schema embeds the SQL migrations applied by datastore.Migrate.
package schema

import "embed"

// FS holds the NNN_description.{up,down}.sql migration files.
//
//go:embed *.sql
var FS embed.FS
