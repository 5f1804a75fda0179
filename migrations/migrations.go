// Package migrations holds the postgres schema, applied with golang-migrate.
package migrations

import "embed"

// FS contains the numbered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
