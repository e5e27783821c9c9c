// Package migrations holds the Postgres schema, embedded so the binary can
// migrate without shipping SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
