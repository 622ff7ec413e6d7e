// Package migrations embeds the back-office schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
