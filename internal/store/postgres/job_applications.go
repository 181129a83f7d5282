package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/google/uuid"
)

const jobColumns = `id, student_id, student_name, job_id, job_title, company_id,
	company_name, status, applied_at, reviewed_at, reviewed_by`

// InsertJob relies on the (student_id, job_id) unique index for duplicates.
func (s *Store) InsertJob(ctx context.Context, app *models.JobApplication) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_applications (
			id, student_id, student_name, job_id, job_title, company_id, company_name, status, applied_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, app.StudentID, app.StudentName, app.JobID, app.JobTitle,
		app.CompanyID, app.CompanyName, string(app.Status), app.AppliedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return lifecycle.ErrDuplicateConflict
		}
		return fmt.Errorf("insert job application: %w", err)
	}
	app.ID = id
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.JobApplication, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_applications WHERE id = $1`, id)
	app, err := scanJob(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job application %s: %w", id, lifecycle.ErrNotFound)
	}
	return app, err
}

func (s *Store) QueryJobs(ctx context.Context, f models.JobApplicationFilter) ([]*models.JobApplication, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("student_id", f.StudentID)
	add("company_id", f.CompanyID)
	add("job_id", f.JobID)
	add("status", string(f.Status))

	query := `SELECT ` + jobColumns + ` FROM job_applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY applied_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job applications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.JobApplication, 0)
	for rows.Next() {
		app, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query job applications: %w", err)
	}
	return out, nil
}

func (s *Store) MarkJobReviewed(ctx context.Context, id, reviewedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_applications
		SET status = $2, reviewed_at = $3, reviewed_by = $4
		WHERE id = $1 AND status = $5`,
		id, string(models.JobStatusReviewed), at, reviewedBy, string(models.JobStatusPending))
	if err != nil {
		return fmt.Errorf("update job application: %w", err)
	}
	return s.checkSwapped(ctx, res, "job_applications", id)
}

func scanJob(row scanner) (*models.JobApplication, error) {
	var (
		app        models.JobApplication
		status     string
		reviewedAt sql.NullTime
		reviewedBy sql.NullString
	)
	err := row.Scan(&app.ID, &app.StudentID, &app.StudentName, &app.JobID, &app.JobTitle,
		&app.CompanyID, &app.CompanyName, &status, &app.AppliedAt, &reviewedAt, &reviewedBy)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job application: %w", err)
	}
	app.Status = models.JobApplicationStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	app.ReviewedBy = reviewedBy.String
	return &app, nil
}
