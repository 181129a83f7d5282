// internal/models/job_application.go
package models

import "time"

// JobApplicationStatus is the two-state lifecycle of a job application.
type JobApplicationStatus string

const (
	JobStatusPending  JobApplicationStatus = "pending"
	JobStatusReviewed JobApplicationStatus = "reviewed"
)

func (s JobApplicationStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusReviewed
}

// JobApplication is a student's application to a company's job posting.
type JobApplication struct {
	ID          string               `json:"id"`
	StudentID   string               `json:"studentId"`
	StudentName string               `json:"studentName"`
	JobID       string               `json:"jobId"`
	JobTitle    string               `json:"jobTitle"`
	CompanyID   string               `json:"companyId"`
	CompanyName string               `json:"companyName"`
	Status      JobApplicationStatus `json:"status"`
	AppliedAt   time.Time            `json:"appliedAt"`
	ReviewedAt  *time.Time           `json:"reviewedAt,omitempty"`
	ReviewedBy  string               `json:"reviewedBy,omitempty"`
}

// JobApplicationFilter selects job applications; empty fields match all.
type JobApplicationFilter struct {
	StudentID string
	CompanyID string
	JobID     string
	Status    JobApplicationStatus
}

func (f JobApplicationFilter) Matches(j *JobApplication) bool {
	return (f.StudentID == "" || j.StudentID == f.StudentID) &&
		(f.CompanyID == "" || j.CompanyID == f.CompanyID) &&
		(f.JobID == "" || j.JobID == f.JobID) &&
		(f.Status == "" || j.Status == f.Status)
}
