// Package migrations embeds the clinic schema so the binary can migrate itself.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
