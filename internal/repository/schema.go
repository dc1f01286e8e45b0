package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// EnsureSchema creates the two application tables when they do not exist yet.
// The original deployment created its schema on boot, so we keep that habit
// instead of carrying a migration tool for two tables.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id       BIGINT PRIMARY KEY,
    username      TEXT,
    full_name     TEXT NOT NULL DEFAULT '',
    course        INT,
    group_lang    TEXT,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS materials (
    id         SERIAL PRIMARY KEY,
    tag        TEXT NOT NULL,
    type       TEXT NOT NULL,
    file_id    TEXT,
    file_name  TEXT,
    caption    TEXT,
    course     INT,
    group_lang TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_materials_tag ON materials (tag);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
