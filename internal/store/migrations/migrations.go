// Package migrations creates the engine-owned tables. The findings and
// logs schemas are frozen: exported reports depend on their exact column
// names and order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_migration_urls START 1`,
	`CREATE TABLE IF NOT EXISTS migration_urls (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_migration_urls'),
		tblname VARCHAR NOT NULL,
		colname VARCHAR NOT NULL,
		resid BIGINT NOT NULL DEFAULT 0,
		url VARCHAR NOT NULL,
		replaced BOOLEAN NOT NULL DEFAULT false,
		course BIGINT NOT NULL DEFAULT -2,
		UNIQUE (tblname, colname, resid, url)
	)`,
	`CREATE SEQUENCE IF NOT EXISTS seq_migration_logs START 1`,
	`CREATE TABLE IF NOT EXISTS migration_logs (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_migration_logs'),
		execution BIGINT NOT NULL,
		testing BOOLEAN NOT NULL DEFAULT false,
		level INTEGER NOT NULL,
		time BIGINT NOT NULL,
		entry BIGINT NOT NULL DEFAULT 0,
		message VARCHAR NOT NULL,
		code VARCHAR DEFAULT '',
		id1 VARCHAR DEFAULT '',
		id2 VARCHAR DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS migration_settings (
		name VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
}

// Run applies the schema. Statements are idempotent so Run is safe to
// call on every startup.
func Run(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
