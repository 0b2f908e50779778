package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the base tables. Later statements add columns that
// were introduced after the initial schema; migration happens by addition
// only, so re-running against an existing database is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(30) NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		text       VARCHAR(200) NOT NULL,
		priority   VARCHAR(10) NOT NULL DEFAULT 'medium',
		completed  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS due_date VARCHAR(10)`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS category VARCHAR(50)`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS sort_order INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_category ON tasks (user_id, category)`,
}

// InitSchema creates the tables and applies additive migrations. Callers
// treat a failure here as fatal; the service must not run against a
// partially initialized schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
