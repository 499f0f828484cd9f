// Package migrations embeds the ordered goose migrations for the local
// store. Each migration applies a single additive schema change and carries
// a matching Down section.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
