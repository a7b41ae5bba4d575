// Package migrations embeds the schema files for both storage backends
// and applies them at startup. Migrations are idempotent; there is no
// version table, every file runs on every start.
package migrations

import "embed"

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS
