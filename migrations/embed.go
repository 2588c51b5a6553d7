// Package migrations embeds the SQL schema files applied to every tenant
// schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
