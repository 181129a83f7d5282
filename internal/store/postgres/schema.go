// Package postgres is the production document store. Applications, job
// applications, the user directory and profile documents live in one
// database; submission quota and duplicate rules are enforced inside a
// transaction holding an advisory lock per (student, institution).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL applied by Migrate. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS applications (
	id                  TEXT PRIMARY KEY,
	student_id          TEXT NOT NULL,
	student_name        TEXT NOT NULL DEFAULT '',
	student_email       TEXT NOT NULL DEFAULT '',
	institution_id      TEXT NOT NULL,
	institution_name    TEXT NOT NULL DEFAULT '',
	institution_email   TEXT NOT NULL DEFAULT '',
	institution_website TEXT NOT NULL DEFAULT '',
	faculty_name        TEXT NOT NULL DEFAULT '',
	course_name         TEXT NOT NULL,
	course_requirements TEXT NOT NULL DEFAULT '',
	student_marks       JSONB NOT NULL DEFAULT '{}'::jsonb,
	status              TEXT NOT NULL CHECK (status IN ('pending', 'admitted', 'rejected')),
	applied_at          TIMESTAMPTZ NOT NULL,
	reviewed_at         TIMESTAMPTZ,
	reviewed_by         TEXT,
	reviewed_by_name    TEXT,
	CHECK ((status = 'pending') = (reviewed_at IS NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS applications_student_course_uniq
	ON applications (student_id, institution_id, course_name);
CREATE INDEX IF NOT EXISTS applications_institution_idx ON applications (institution_id);
CREATE INDEX IF NOT EXISTS applications_institution_email_idx ON applications (lower(institution_email));

CREATE TABLE IF NOT EXISTS job_applications (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL,
	student_name TEXT NOT NULL DEFAULT '',
	job_id       TEXT NOT NULL,
	job_title    TEXT NOT NULL DEFAULT '',
	company_id   TEXT NOT NULL,
	company_name TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL CHECK (status IN ('pending', 'reviewed')),
	applied_at   TIMESTAMPTZ NOT NULL,
	reviewed_at  TIMESTAMPTZ,
	reviewed_by  TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS job_applications_student_job_uniq
	ON job_applications (student_id, job_id);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	role       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	approved   BOOLEAN NOT NULL DEFAULT FALSE,
	suspended  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS student_documents (
	student_id  TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('transcripts', 'certificates')),
	file_name   TEXT NOT NULL,
	object_key  TEXT NOT NULL,
	url         TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, kind)
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
