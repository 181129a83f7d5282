package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/models"
)

// SubmitJob records a student's application to a job posting. There is no
// quota or eligibility gate; applying twice to the same job is
// DuplicateApplication.
func (m *Manager) SubmitJob(ctx context.Context, student models.StudentProfile, job models.JobPosting) (*models.JobApplication, error) {
	if student.ID == "" || job.ID == "" || job.CompanyID == "" {
		return nil, m.reject("submit-job", errors.NewInvalidInputError("student id, job id and company id are required"))
	}

	app := &models.JobApplication{
		StudentID:   student.ID,
		StudentName: student.Name,
		JobID:       job.ID,
		JobTitle:    job.Title,
		CompanyID:   job.CompanyID,
		CompanyName: job.CompanyName,
		Status:      models.JobStatusPending,
		AppliedAt:   m.now(),
	}
	if err := m.jobs.InsertJob(ctx, app); err != nil {
		if stderrors.Is(err, ErrDuplicateConflict) {
			return nil, m.reject("submit-job", errors.NewDuplicateApplicationError(
				fmt.Sprintf("studentId: %s, jobId: %s", student.ID, job.ID)))
		}
		return nil, m.reject("submit-job", errors.NewCollaboratorUnavailableError(collaboratorStore, err))
	}

	m.logger.Info("job application submitted", map[string]interface{}{
		"jobApplicationId": app.ID,
		"studentId":        app.StudentID,
		"jobId":            app.JobID,
		"companyId":        app.CompanyID,
	})
	return app, nil
}

// ReviewJob marks a pending job application as reviewed. Only the company
// that owns the posting (and is not suspended) or an admin may review. As in
// Decide, a reviewed application is AlreadyDecided before the reviewer is
// checked.
func (m *Manager) ReviewJob(ctx context.Context, id string, reviewer models.Principal) (*models.JobApplication, error) {
	if id == "" {
		return nil, m.reject("review-job", errors.NewInvalidInputError("job application id is required"))
	}
	app, err := m.getJob(ctx, id)
	if err != nil {
		return nil, m.reject("review-job", err)
	}
	if app.Status != models.JobStatusPending {
		return nil, m.reject("review-job", errors.NewAlreadyDecidedError(app.ID, string(app.Status)))
	}
	if err := authorizeJobReview(reviewer, app); err != nil {
		return nil, m.reject("review-job", err)
	}

	at := m.now()
	if err := m.jobs.MarkJobReviewed(ctx, id, reviewer.PrincipalID(), at); err != nil {
		switch {
		case stderrors.Is(err, ErrNotFound):
			err = errors.NewNotFoundError("job application", id)
		case stderrors.Is(err, ErrConflict):
			err = errors.NewAlreadyDecidedError(id, string(models.JobStatusReviewed))
		default:
			err = errors.NewCollaboratorUnavailableError(collaboratorStore, err)
		}
		return nil, m.reject("review-job", err)
	}

	app.Status = models.JobStatusReviewed
	app.ReviewedAt = &at
	app.ReviewedBy = reviewer.PrincipalID()
	m.logger.Info("job application reviewed", map[string]interface{}{
		"jobApplicationId": app.ID,
		"companyId":        app.CompanyID,
		"reviewedBy":       app.ReviewedBy,
	})
	return app, nil
}

func authorizeJobReview(reviewer models.Principal, app *models.JobApplication) error {
	if reviewer == nil {
		return errors.NewUnauthorizedError("no reviewer")
	}
	deny := errors.NewUnauthorizedError(fmt.Sprintf("%s %s may not review job application %s",
		reviewer.Role(), reviewer.PrincipalID(), app.ID))
	return models.Match(reviewer,
		func(models.Student) error { return deny },
		func(models.Institute) error { return deny },
		func(models.Admin) error { return nil },
		func(c models.Company) error {
			if c.ID != app.CompanyID || c.Suspended {
				return deny
			}
			return nil
		},
	)
}

func (m *Manager) getJob(ctx context.Context, id string) (*models.JobApplication, error) {
	app, err := m.jobs.GetJob(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NewNotFoundError("job application", id)
		}
		return nil, errors.NewCollaboratorUnavailableError(collaboratorStore, err)
	}
	return app, nil
}

// ListJobsForStudent returns a student's job applications, newest first.
func (m *Manager) ListJobsForStudent(ctx context.Context, studentID string) ([]*models.JobApplication, error) {
	if studentID == "" {
		return nil, errors.NewInvalidInputError("student id is required")
	}
	return m.queryJobs(ctx, models.JobApplicationFilter{StudentID: studentID})
}

// ListJobsForCompany returns the job applications received by a company.
func (m *Manager) ListJobsForCompany(ctx context.Context, companyID string) ([]*models.JobApplication, error) {
	if companyID == "" {
		return nil, errors.NewInvalidInputError("company id is required")
	}
	return m.queryJobs(ctx, models.JobApplicationFilter{CompanyID: companyID})
}

func (m *Manager) queryJobs(ctx context.Context, f models.JobApplicationFilter) ([]*models.JobApplication, error) {
	apps, err := m.jobs.QueryJobs(ctx, f)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorStore, err)
	}
	return apps, nil
}
