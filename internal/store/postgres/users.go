package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/models"
)

const collaboratorDirectory = "directory"

// Directory reads accounts from the users table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Principal loads the account with the given id. A stored role outside the
// known set is UnknownRole.
func (d *Directory) Principal(ctx context.Context, id string) (models.Principal, error) {
	var rec models.PrincipalRecord
	var role string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, email, role, name, phone, website, approved, suspended
		FROM users WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Email, &role, &rec.Name, &rec.Phone, &rec.Website, &rec.Approved, &rec.Suspended)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("user", id)
		}
		return nil, errors.NewCollaboratorUnavailableError(collaboratorDirectory, err)
	}
	rec.Role = models.Role(role)
	return rec.Principal()
}

// StudentProfile returns the contact details of a student account.
func (d *Directory) StudentProfile(ctx context.Context, id string) (models.StudentProfile, error) {
	p, err := d.Principal(ctx, id)
	if err != nil {
		return models.StudentProfile{}, err
	}
	s, ok := p.(models.Student)
	if !ok {
		return models.StudentProfile{}, errors.NewInvalidInputError(fmt.Sprintf("user %s is a %s, not a student", id, p.Role()))
	}
	return s.Profile(), nil
}

// Institutions lists every institute account, by name.
func (d *Directory) Institutions(ctx context.Context) ([]models.InstitutionRef, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, email, name FROM users WHERE role = $1 ORDER BY name, id`, string(models.RoleInstitute))
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorDirectory, err)
	}
	defer rows.Close()

	out := make([]models.InstitutionRef, 0)
	for rows.Next() {
		var ref models.InstitutionRef
		if err := rows.Scan(&ref.ID, &ref.Email, &ref.Name); err != nil {
			return nil, errors.NewCollaboratorUnavailableError(collaboratorDirectory, err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorDirectory, err)
	}
	return out, nil
}
