// internal/models/principal.go
package models

import (
	"strings"

	"admissions-workers/internal/common/errors"
)

// Role is the closed set of account kinds in the portal.
type Role string

const (
	RoleStudent   Role = "student"
	RoleInstitute Role = "institute"
	RoleAdmin     Role = "admin"
	RoleCompany   Role = "company"
)

// ParseRole accepts the stored role names, case-insensitively. Anything else
// is UnknownRole rather than a fallback.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleInstitute, RoleAdmin, RoleCompany:
		return r, nil
	}
	return "", errors.NewUnknownRoleError(s)
}

// Principal is an authenticated account. The implementations are exactly
// Student, Institute, Admin and Company; use Match or a PrincipalVisitor to
// branch on the role.
type Principal interface {
	PrincipalID() string
	DisplayName() string
	ContactEmail() string
	Role() Role
	Accept(v PrincipalVisitor)
	sealed()
}

// PrincipalVisitor has one method per role, so adding a role breaks every
// visitor until it handles the new case.
type PrincipalVisitor interface {
	VisitStudent(Student)
	VisitInstitute(Institute)
	VisitAdmin(Admin)
	VisitCompany(Company)
}

type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Institute struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Website string `json:"website,omitempty"`
}

type Admin struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Company struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Approved  bool   `json:"approved"`
	Suspended bool   `json:"suspended"`
}

func (s Student) PrincipalID() string         { return s.ID }
func (s Student) DisplayName() string         { return s.Name }
func (s Student) ContactEmail() string        { return s.Email }
func (Student) Role() Role                    { return RoleStudent }
func (s Student) Accept(v PrincipalVisitor)   { v.VisitStudent(s) }
func (Student) sealed()                       {}
func (i Institute) PrincipalID() string       { return i.ID }
func (i Institute) DisplayName() string       { return i.Name }
func (i Institute) ContactEmail() string      { return i.Email }
func (Institute) Role() Role                  { return RoleInstitute }
func (i Institute) Accept(v PrincipalVisitor) { v.VisitInstitute(i) }
func (Institute) sealed()                     {}
func (a Admin) PrincipalID() string           { return a.ID }
func (a Admin) DisplayName() string           { return a.Name }
func (a Admin) ContactEmail() string          { return a.Email }
func (Admin) Role() Role                      { return RoleAdmin }
func (a Admin) Accept(v PrincipalVisitor)     { v.VisitAdmin(a) }
func (Admin) sealed()                         {}
func (c Company) PrincipalID() string         { return c.ID }
func (c Company) DisplayName() string         { return c.Name }
func (c Company) ContactEmail() string        { return c.Email }
func (Company) Role() Role                    { return RoleCompany }
func (c Company) Accept(v PrincipalVisitor)   { v.VisitCompany(c) }
func (Company) sealed()                       {}

// Student profile of a student principal.
func (s Student) Profile() StudentProfile {
	return StudentProfile{ID: s.ID, Name: s.Name, Email: s.Email, Phone: s.Phone}
}

// Match calls the function for p's role and returns its result.
func Match[T any](
	p Principal,
	student func(Student) T,
	institute func(Institute) T,
	admin func(Admin) T,
	company func(Company) T,
) T {
	m := &matcher[T]{student: student, institute: institute, admin: admin, company: company}
	p.Accept(m)
	return m.out
}

type matcher[T any] struct {
	student   func(Student) T
	institute func(Institute) T
	admin     func(Admin) T
	company   func(Company) T
	out       T
}

func (m *matcher[T]) VisitStudent(s Student)     { m.out = m.student(s) }
func (m *matcher[T]) VisitInstitute(i Institute) { m.out = m.institute(i) }
func (m *matcher[T]) VisitAdmin(a Admin)         { m.out = m.admin(a) }
func (m *matcher[T]) VisitCompany(c Company)     { m.out = m.company(c) }

// PrincipalRecord is the flat, serialisable form of a Principal used for the
// session cache and for job variables.
type PrincipalRecord struct {
	Role      Role   `json:"role"`
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
	Suspended bool   `json:"suspended,omitempty"`
}

// RecordOf flattens p.
func RecordOf(p Principal) PrincipalRecord {
	return Match(p,
		func(s Student) PrincipalRecord {
			return PrincipalRecord{Role: RoleStudent, ID: s.ID, Name: s.Name, Email: s.Email, Phone: s.Phone}
		},
		func(i Institute) PrincipalRecord {
			return PrincipalRecord{Role: RoleInstitute, ID: i.ID, Name: i.Name, Email: i.Email, Website: i.Website}
		},
		func(a Admin) PrincipalRecord {
			return PrincipalRecord{Role: RoleAdmin, ID: a.ID, Name: a.Name, Email: a.Email}
		},
		func(c Company) PrincipalRecord {
			return PrincipalRecord{Role: RoleCompany, ID: c.ID, Name: c.Name, Email: c.Email,
				Approved: c.Approved, Suspended: c.Suspended}
		},
	)
}

// Principal rebuilds the typed principal. The role string is validated.
func (r PrincipalRecord) Principal() (Principal, error) {
	role, err := ParseRole(string(r.Role))
	if err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, errors.NewInvalidInputError("principal id is required")
	}
	switch role {
	case RoleStudent:
		return Student{ID: r.ID, Name: r.Name, Email: r.Email, Phone: r.Phone}, nil
	case RoleInstitute:
		return Institute{ID: r.ID, Name: r.Name, Email: r.Email, Website: r.Website}, nil
	case RoleAdmin:
		return Admin{ID: r.ID, Name: r.Name, Email: r.Email}, nil
	default:
		return Company{ID: r.ID, Name: r.Name, Email: r.Email, Approved: r.Approved, Suspended: r.Suspended}, nil
	}
}
