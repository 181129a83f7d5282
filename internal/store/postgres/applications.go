package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"admissions-workers/internal/common/database"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE of a unique index conflict.
const uniqueViolation = "23505"

// Store implements lifecycle.ApplicationStore and lifecycle.JobApplicationStore.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ lifecycle.ApplicationStore    = (*Store)(nil)
	_ lifecycle.JobApplicationStore = (*Store)(nil)
)

const applicationColumns = `id, student_id, student_name, student_email,
	institution_id, institution_name, institution_email, institution_website,
	faculty_name, course_name, course_requirements, student_marks, status,
	applied_at, reviewed_at, reviewed_by, reviewed_by_name`

// Insert serialises submissions of one student to one institution with a
// transaction-scoped advisory lock, then re-counts before inserting.
func (s *Store) Insert(ctx context.Context, app *models.Application, guard lifecycle.SubmitGuard) error {
	marks, err := json.Marshal(app.StudentMarks)
	if err != nil {
		return fmt.Errorf("encode marks: %w", err)
	}
	id := uuid.NewString()

	err = database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		lockKey := app.StudentID + "/" + app.InstitutionID
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("acquire submission lock: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT course_name FROM applications WHERE student_id = $1 AND institution_id = $2`,
			app.StudentID, app.InstitutionID)
		if err != nil {
			return fmt.Errorf("count applications: %w", err)
		}
		held := 0
		duplicate := false
		for rows.Next() {
			var course string
			if err := rows.Scan(&course); err != nil {
				rows.Close()
				return fmt.Errorf("scan course: %w", err)
			}
			held++
			if course == app.CourseName {
				duplicate = true
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("count applications: %w", err)
		}
		rows.Close()

		if guard.MaxPerInstitution > 0 && held >= guard.MaxPerInstitution {
			return lifecycle.ErrQuotaConflict
		}
		if duplicate {
			return lifecycle.ErrDuplicateConflict
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO applications (
				id, student_id, student_name, student_email,
				institution_id, institution_name, institution_email, institution_website,
				faculty_name, course_name, course_requirements, student_marks, status, applied_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			id, app.StudentID, app.StudentName, app.StudentEmail,
			app.InstitutionID, app.InstitutionName, app.InstitutionEmail, app.InstitutionWebsite,
			app.FacultyName, app.CourseName, app.CourseRequirements, marks, string(app.Status), app.AppliedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return lifecycle.ErrDuplicateConflict
			}
			return fmt.Errorf("insert application: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	app.ID = id
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, lifecycle.ErrNotFound)
	}
	return app, err
}

func (s *Store) Query(ctx context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.StudentID != "" {
		where = append(where, "student_id = "+arg(f.StudentID))
	}
	switch {
	case f.InstitutionID != "" && f.InstitutionEmail != "":
		where = append(where, fmt.Sprintf("(institution_id = %s OR lower(institution_email) = lower(%s))",
			arg(f.InstitutionID), arg(f.InstitutionEmail)))
	case f.InstitutionID != "":
		where = append(where, "institution_id = "+arg(f.InstitutionID))
	case f.InstitutionEmail != "":
		where = append(where, "lower(institution_email) = lower("+arg(f.InstitutionEmail)+")")
	}
	if f.CourseName != "" {
		where = append(where, "course_name = "+arg(f.CourseName))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY applied_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	return out, nil
}

// ConditionalUpdate is a compare-and-set on status.
func (s *Store) ConditionalUpdate(ctx context.Context, id string, expected models.ApplicationStatus, review models.Review) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $2, reviewed_at = $3, reviewed_by = $4, reviewed_by_name = $5
		WHERE id = $1 AND status = $6`,
		id, string(review.Status), review.ReviewedAt, review.ReviewedBy, review.ReviewedByName, string(expected))
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return s.checkSwapped(ctx, res, "applications", id)
}

func (s *Store) checkSwapped(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, lifecycle.ErrNotFound)
	}
	return lifecycle.ErrConflict
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		app            models.Application
		status         string
		marks          []byte
		reviewedAt     sql.NullTime
		reviewedBy     sql.NullString
		reviewedByName sql.NullString
	)
	err := row.Scan(
		&app.ID, &app.StudentID, &app.StudentName, &app.StudentEmail,
		&app.InstitutionID, &app.InstitutionName, &app.InstitutionEmail, &app.InstitutionWebsite,
		&app.FacultyName, &app.CourseName, &app.CourseRequirements, &marks, &status,
		&app.AppliedAt, &reviewedAt, &reviewedBy, &reviewedByName,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	app.Status = models.ApplicationStatus(status)
	if len(marks) > 0 {
		if err := json.Unmarshal(marks, &app.StudentMarks); err != nil {
			return nil, fmt.Errorf("decode marks of %s: %w", app.ID, err)
		}
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	app.ReviewedBy = reviewedBy.String
	app.ReviewedByName = reviewedByName.String
	return &app, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
