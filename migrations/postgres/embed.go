// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contiene las migraciones de las tablas del key-value store.
//
//go:embed *.sql
var FS embed.FS
