// Package migrations embeds the Postgres schema files.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
