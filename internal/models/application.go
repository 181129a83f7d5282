// internal/models/application.go
package models

import (
	stderrors "errors"
	"strconv"
	"strings"
	"time"
)

// ApplicationStatus is the lifecycle state of a course application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAdmitted ApplicationStatus = "admitted"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is one of the three known states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAdmitted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal is true once an application has been decided.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAdmitted || s == StatusRejected
}

// IsOutcome reports whether s may be the result of a decision.
func (s ApplicationStatus) IsOutcome() bool {
	return s.IsTerminal()
}

// Marks maps a subject name to a percentage as entered by the student.
// Values are free text and may be empty.
type Marks map[string]string

// MarkOverall is the subject key of the aggregate mark.
const MarkOverall = "overall"

// Get looks a subject up case-insensitively. An exact key wins; among keys
// that differ only in case the lexicographically smallest is used.
func (m Marks) Get(subject string) (string, bool) {
	if v, ok := m[subject]; ok {
		return v, true
	}
	match, found := "", false
	for k := range m {
		if strings.EqualFold(k, subject) && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return "", false
	}
	return m[match], true
}

// Int parses the leading integer of a subject's mark the way a lenient form
// would: "72", "72%", " 72.5" all give 72. Missing, empty or non-numeric
// marks are 0. Values beyond the int range clamp to its bounds.
func (m Marks) Int(subject string) int {
	raw, ok := m.Get(subject)
	if !ok {
		return 0
	}
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		// Atoi returns the clamped value with ErrRange
		if stderrors.Is(err, strconv.ErrRange) {
			return n
		}
		return 0
	}
	return n
}

// Application is a student's request to be admitted to a course. The
// student, institution and course fields are snapshots taken at submission.
type Application struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"studentId"`
	StudentName        string            `json:"studentName"`
	StudentEmail       string            `json:"studentEmail"`
	InstitutionID      string            `json:"institutionId"`
	InstitutionName    string            `json:"institutionName"`
	InstitutionEmail   string            `json:"institutionEmail"`
	InstitutionWebsite string            `json:"institutionWebsite,omitempty"`
	FacultyName        string            `json:"facultyName"`
	CourseName         string            `json:"courseName"`
	CourseRequirements string            `json:"courseRequirements,omitempty"`
	StudentMarks       Marks             `json:"studentMarks"`
	Status             ApplicationStatus `json:"status"`
	AppliedAt          time.Time         `json:"appliedAt"`
	ReviewedAt         *time.Time        `json:"reviewedAt,omitempty"`
	ReviewedBy         string            `json:"reviewedBy,omitempty"`
	ReviewedByName     string            `json:"reviewedByName,omitempty"`
}

// Review is the data written when an application leaves pending.
type Review struct {
	Status         ApplicationStatus
	ReviewedAt     time.Time
	ReviewedBy     string
	ReviewedByName string
}

// Apply copies the review onto a.
func (r Review) Apply(a *Application) {
	at := r.ReviewedAt
	a.Status = r.Status
	a.ReviewedAt = &at
	a.ReviewedBy = r.ReviewedBy
	a.ReviewedByName = r.ReviewedByName
}

// InstitutionRef identifies an institution by id and/or contact email.
type InstitutionRef struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ApplicationFilter selects applications. Empty fields match everything;
// InstitutionID and InstitutionEmail match if either one does.
type ApplicationFilter struct {
	StudentID        string
	InstitutionID    string
	InstitutionEmail string
	CourseName       string
	Status           ApplicationStatus
}

// Matches applies the filter to one application.
func (f ApplicationFilter) Matches(a *Application) bool {
	if f.StudentID != "" && a.StudentID != f.StudentID {
		return false
	}
	if f.InstitutionID != "" || f.InstitutionEmail != "" {
		byID := f.InstitutionID != "" && a.InstitutionID == f.InstitutionID
		byEmail := f.InstitutionEmail != "" && strings.EqualFold(a.InstitutionEmail, f.InstitutionEmail)
		if !byID && !byEmail {
			return false
		}
	}
	if f.CourseName != "" && a.CourseName != f.CourseName {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
