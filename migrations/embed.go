// Package migrations embeds the SQL schema migrations of the auth service.
package migrations

import "embed"

// FS holds the *.up.sql files, applied in lexical order.
//
//go:embed *.up.sql
var FS embed.FS
