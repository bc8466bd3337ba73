// Package migrations embeds the goose schema migrations for each SQL dialect.
package migrations

import "embed"

// Postgres holds migrations applied with the pgx goose dialect.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds migrations applied with the sqlite3 goose dialect.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
