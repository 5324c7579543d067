// Package migrations contains embedded SQL migrations for the combat store.
package migrations

import "embed"

// FS contains embedded SQLite migrations for combat session storage.
//
//go:embed *.sql
var FS embed.FS
