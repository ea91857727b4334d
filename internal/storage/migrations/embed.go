// Package migrations embeds and applies the schema for the persistent stores.
package migrations

import "embed"

// PostgresFS holds trade_records and audit_events DDL.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds bars and backtest_runs DDL.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
