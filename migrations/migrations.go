// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds the up/down migration pairs in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
