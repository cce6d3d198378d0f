package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema files, applied in lexical order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema files. One statement per file;
// the clickhouse driver rejects multi-statement scripts.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
