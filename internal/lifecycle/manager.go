// Package lifecycle owns the state machine of course and job applications:
// submission gates (quota, duplicate, eligibility), the single-winner
// decision transition and the read-side statistics.
package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/models"
)

const collaboratorStore = "document-store"

// Options configure a Manager. Zero values fall back to the portal's rules.
type Options struct {
	MaxApplicationsPerInstitution int
	Policy                        EligibilityPolicy
	Indexer                       Indexer
	Clock                         func() time.Time
}

// Manager is safe for concurrent use; all coordination happens in the store.
type Manager struct {
	apps    ApplicationStore
	jobs    JobApplicationStore
	policy  EligibilityPolicy
	indexer Indexer
	maxPer  int
	now     func() time.Time
	logger  logger.Logger
}

func NewManager(apps ApplicationStore, jobs JobApplicationStore, opts Options, log logger.Logger) *Manager {
	m := &Manager{
		apps:    apps,
		jobs:    jobs,
		policy:  opts.Policy,
		indexer: opts.Indexer,
		maxPer:  opts.MaxApplicationsPerInstitution,
		now:     opts.Clock,
		logger:  log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
	if m.maxPer <= 0 {
		m.maxPer = 2
	}
	if m.policy == nil {
		m.policy = OverallFloor{Min: 50}
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m
}

// SubmitRequest carries the denormalised inputs of a course application.
type SubmitRequest struct {
	Student     models.StudentProfile `json:"student"`
	Institution models.Institution    `json:"institution"`
	Faculty     models.Faculty        `json:"faculty"`
	Course      models.Course         `json:"course"`
	Marks       models.Marks          `json:"marks"`
}

func (r SubmitRequest) validate() error {
	var missing []string
	if r.Student.ID == "" {
		missing = append(missing, "student.id")
	}
	if r.Institution.ID == "" {
		missing = append(missing, "institution.id")
	}
	if strings.TrimSpace(r.Course.Name) == "" {
		missing = append(missing, "course.name")
	}
	if len(missing) > 0 {
		return errors.NewInvalidInputError("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// Submit creates a pending application. The checks run in order quota,
// duplicate, eligibility; the first failure is returned and nothing is
// written. The store re-checks quota and duplicate inside the insert.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	if err := req.validate(); err != nil {
		return nil, m.reject("submit", err)
	}

	existing, err := m.apps.Query(ctx, models.ApplicationFilter{
		StudentID:     req.Student.ID,
		InstitutionID: req.Institution.ID,
	})
	if err != nil {
		return nil, m.reject("submit", errors.NewCollaboratorUnavailableError(collaboratorStore, err))
	}

	if len(existing) >= m.maxPer {
		return nil, m.reject("submit", errors.NewQuotaExceededError(req.Student.ID, req.Institution.ID, m.maxPer))
	}
	for _, a := range existing {
		if a.CourseName == req.Course.Name {
			return nil, m.reject("submit", duplicateCourse(req))
		}
	}
	if err := m.policy.Check(req.Course, req.Marks); err != nil {
		return nil, m.reject("submit", err)
	}

	app := &models.Application{
		StudentID:          req.Student.ID,
		StudentName:        req.Student.Name,
		StudentEmail:       req.Student.Email,
		InstitutionID:      req.Institution.ID,
		InstitutionName:    req.Institution.Name,
		InstitutionEmail:   req.Institution.Email,
		InstitutionWebsite: req.Institution.Website,
		FacultyName:        req.Faculty.Name,
		CourseName:         req.Course.Name,
		CourseRequirements: req.Course.Requirements,
		StudentMarks:       cloneMarks(req.Marks),
		Status:             models.StatusPending,
		AppliedAt:          m.now(),
	}

	if err := m.apps.Insert(ctx, app, SubmitGuard{MaxPerInstitution: m.maxPer}); err != nil {
		switch {
		case stderrors.Is(err, ErrQuotaConflict):
			err = errors.NewQuotaExceededError(req.Student.ID, req.Institution.ID, m.maxPer)
		case stderrors.Is(err, ErrDuplicateConflict):
			err = duplicateCourse(req)
		default:
			err = errors.NewCollaboratorUnavailableError(collaboratorStore, err)
		}
		return nil, m.reject("submit", err)
	}

	metrics.ApplicationsSubmitted.Inc()
	m.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"studentId":     app.StudentID,
		"institutionId": app.InstitutionID,
		"courseName":    app.CourseName,
	})
	m.index(ctx, app)
	return app, nil
}

func duplicateCourse(req SubmitRequest) error {
	return errors.NewDuplicateApplicationError(fmt.Sprintf("studentId: %s, institutionId: %s, course: %s",
		req.Student.ID, req.Institution.ID, req.Course.Name))
}

// Decide moves a pending application to admitted or rejected. After the
// lookup (NotFound) the preconditions are checked in order: the application
// is still pending (AlreadyDecided), the outcome is a terminal status
// (InvalidOutcome), the reviewer may decide for this institution
// (Unauthorized). Concurrent decisions have exactly one winner; the others
// get AlreadyDecided.
func (m *Manager) Decide(ctx context.Context, applicationID string, reviewer models.Principal, outcome models.ApplicationStatus) (*models.Application, error) {
	app, err := m.getApplication(ctx, applicationID)
	if err != nil {
		return nil, m.reject("decide", err)
	}
	if app.Status != models.StatusPending {
		return nil, m.reject("decide", errors.NewAlreadyDecidedError(app.ID, string(app.Status)))
	}
	if !outcome.IsOutcome() {
		return nil, m.reject("decide", errors.NewInvalidOutcomeError(string(outcome)))
	}
	reviewerName, err := authorizeDecision(reviewer, app)
	if err != nil {
		return nil, m.reject("decide", err)
	}

	review := models.Review{
		Status:         outcome,
		ReviewedAt:     m.now(),
		ReviewedBy:     reviewer.PrincipalID(),
		ReviewedByName: reviewerName,
	}
	if err := m.apps.ConditionalUpdate(ctx, app.ID, models.StatusPending, review); err != nil {
		return nil, m.reject("decide", m.decideConflict(ctx, app.ID, err))
	}

	review.Apply(app)
	metrics.ApplicationsDecided.WithLabelValues(string(outcome)).Inc()
	m.logger.Info("application decided", map[string]interface{}{
		"applicationId": app.ID,
		"studentId":     app.StudentID,
		"institutionId": app.InstitutionID,
		"status":        string(app.Status),
		"reviewedBy":    app.ReviewedBy,
	})
	m.index(ctx, app)
	return app, nil
}

// decideConflict turns a failed conditional update into the caller-facing
// error, re-reading the record to report the winning status.
func (m *Manager) decideConflict(ctx context.Context, id string, err error) error {
	switch {
	case stderrors.Is(err, ErrNotFound):
		return errors.NewNotFoundError("application", id)
	case stderrors.Is(err, ErrConflict):
		current, gerr := m.getApplication(ctx, id)
		if gerr != nil {
			return gerr
		}
		return errors.NewAlreadyDecidedError(id, string(current.Status))
	default:
		return errors.NewCollaboratorUnavailableError(collaboratorStore, err)
	}
}

// authorizeDecision returns the name recorded as reviewedByName.
func authorizeDecision(reviewer models.Principal, app *models.Application) (string, error) {
	if reviewer == nil {
		return "", errors.NewUnauthorizedError("no reviewer")
	}
	deny := func(role string) error {
		return errors.NewUnauthorizedError(fmt.Sprintf("%s %s may not decide application %s",
			role, reviewer.PrincipalID(), app.ID))
	}
	type result struct {
		name string
		err  error
	}
	r := models.Match(reviewer,
		func(models.Student) result { return result{err: deny("student")} },
		func(i models.Institute) result {
			ownsByID := i.ID != "" && i.ID == app.InstitutionID
			ownsByEmail := i.Email != "" && strings.EqualFold(i.Email, app.InstitutionEmail)
			if !ownsByID && !ownsByEmail {
				return result{err: deny("institute")}
			}
			name := i.Name
			if name == "" {
				name = app.InstitutionName
			}
			return result{name: name}
		},
		func(a models.Admin) result {
			if a.Name == "" {
				return result{name: "Admin"}
			}
			return result{name: a.Name}
		},
		func(models.Company) result { return result{err: deny("company")} },
	)
	return r.name, r.err
}

// Get returns one application.
func (m *Manager) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return m.getApplication(ctx, applicationID)
}

func (m *Manager) getApplication(ctx context.Context, id string) (*models.Application, error) {
	if id == "" {
		return nil, errors.NewInvalidInputError("application id is required")
	}
	app, err := m.apps.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NewNotFoundError("application", id)
		}
		return nil, errors.NewCollaboratorUnavailableError(collaboratorStore, err)
	}
	return app, nil
}

// ListForStudent returns a student's applications, newest first.
func (m *Manager) ListForStudent(ctx context.Context, studentID string) ([]*models.Application, error) {
	if studentID == "" {
		return nil, errors.NewInvalidInputError("student id is required")
	}
	return m.query(ctx, models.ApplicationFilter{StudentID: studentID})
}

// ListForInstitution returns applications addressed to the institution by id
// or by contact email, newest first.
func (m *Manager) ListForInstitution(ctx context.Context, ref models.InstitutionRef) ([]*models.Application, error) {
	if ref.ID == "" && ref.Email == "" {
		return nil, errors.NewInvalidInputError("institution id or email is required")
	}
	return m.query(ctx, models.ApplicationFilter{InstitutionID: ref.ID, InstitutionEmail: ref.Email})
}

// ListAll returns every application, newest first.
func (m *Manager) ListAll(ctx context.Context) ([]*models.Application, error) {
	return m.query(ctx, models.ApplicationFilter{})
}

func (m *Manager) query(ctx context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	apps, err := m.apps.Query(ctx, f)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorStore, err)
	}
	return apps, nil
}

func (m *Manager) index(ctx context.Context, app *models.Application) {
	if m.indexer == nil {
		return
	}
	if err := m.indexer.IndexApplication(ctx, app); err != nil {
		m.logger.Warn("search index update failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err,
		})
	}
}

func (m *Manager) reject(operation string, err error) error {
	code := errors.Normalize(err).Code
	metrics.LifecycleRejections.WithLabelValues(operation, string(code)).Inc()
	m.logger.Debug("lifecycle operation refused", map[string]interface{}{
		"operation": operation,
		"errorCode": string(code),
	})
	return err
}

func cloneMarks(in models.Marks) models.Marks {
	out := make(models.Marks, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
