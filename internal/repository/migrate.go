package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS document_jobs (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		fields        JSONB NOT NULL DEFAULT '[]',
		result        TEXT NOT NULL DEFAULT '',
		error         TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL,
		status        TEXT NOT NULL,
		artifact_ref  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		file_name         TEXT NOT NULL,
		file_path         TEXT NOT NULL,
		file_size         BIGINT NOT NULL DEFAULT 0,
		file_type         TEXT NOT NULL,
		status            TEXT NOT NULL,
		document_type     TEXT NOT NULL,
		processing_result JSONB,
		error_message     TEXT NOT NULL DEFAULT '',
		job_id            TEXT NOT NULL UNIQUE REFERENCES document_jobs(id),
		metadata          JSONB NOT NULL DEFAULT '[]',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_user_created_idx ON documents (user_id, created_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS document_jobs (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		fields        TEXT NOT NULL DEFAULT '[]',
		result        TEXT NOT NULL DEFAULT '',
		error         TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL,
		status        TEXT NOT NULL,
		artifact_ref  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		file_name         TEXT NOT NULL,
		file_path         TEXT NOT NULL,
		file_size         INTEGER NOT NULL DEFAULT 0,
		file_type         TEXT NOT NULL,
		status            TEXT NOT NULL,
		document_type     TEXT NOT NULL,
		processing_result TEXT,
		error_message     TEXT NOT NULL DEFAULT '',
		job_id            TEXT NOT NULL UNIQUE REFERENCES document_jobs(id),
		metadata          TEXT NOT NULL DEFAULT '[]',
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_user_created_idx ON documents (user_id, created_at DESC)`,
}

// Migrate creates the record tables when missing.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if d.dialect == dialect.Postgres {
		stmts = postgresSchema
	}
	for i, stmt := range stmts {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			d.log.Error("migration failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	d.log.Info("database migrated", "dialect", d.dialect, "statements", len(stmts))
	return nil
}
