package store

import (
	"context"
	"database/sql"
)

// The unique index on (lower(email), week_number, year) is what actually
// enforces one application per applicant per week; the pre-insert lookup
// only short-circuits the common case.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id           UUID PRIMARY KEY,
		full_name    TEXT NOT NULL,
		email        TEXT NOT NULL,
		week_number  INTEGER NOT NULL CHECK (week_number >= 1),
		year         INTEGER NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		photo_url    TEXT,
		answers      JSONB NOT NULL DEFAULT '{}'::jsonb,
		client_ip    TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS applications_email_week_uniq
		ON applications (lower(email), week_number, year)`,
	`CREATE INDEX IF NOT EXISTS applications_year_week_idx
		ON applications (year, week_number, submitted_at DESC)`,
	`CREATE TABLE IF NOT EXISTS weekly_questions (
		id          UUID PRIMARY KEY,
		week_number INTEGER NOT NULL CHECK (week_number BETWEEN 1 AND 53),
		year        INTEGER NOT NULL,
		question1   TEXT NOT NULL,
		question2   TEXT NOT NULL,
		question3   TEXT,
		deadline    TIMESTAMPTZ NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT true,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS weekly_questions_active_idx
		ON weekly_questions (year, week_number, created_at DESC) WHERE is_active`,
}

// EnsureSchema creates the tables and indexes if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return wrap("ensure schema", err)
		}
	}
	return nil
}
