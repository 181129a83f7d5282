package lifecycle

import (
	"context"
	"errors"
	"time"

	"admissions-workers/internal/models"
)

// Store-level outcomes. Implementations return these (possibly wrapped) so
// the manager can map them onto the public error kinds.
var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("conditional update lost")
	ErrQuotaConflict     = errors.New("institution quota reached")
	ErrDuplicateConflict = errors.New("duplicate application")
)

// SubmitGuard is re-checked by the store atomically with the insert.
type SubmitGuard struct {
	MaxPerInstitution int
}

// ApplicationStore persists course applications. Query returns newest first.
type ApplicationStore interface {
	// Insert assigns app.ID and stores app, unless the student already holds
	// guard.MaxPerInstitution applications at app.InstitutionID
	// (ErrQuotaConflict) or one for the same course (ErrDuplicateConflict).
	Insert(ctx context.Context, app *models.Application, guard SubmitGuard) error
	Get(ctx context.Context, id string) (*models.Application, error)
	Query(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
	// ConditionalUpdate applies review only while the stored status equals
	// expected. It returns ErrConflict when the status differs and
	// ErrNotFound when id does not exist.
	ConditionalUpdate(ctx context.Context, id string, expected models.ApplicationStatus, review models.Review) error
}

// JobApplicationStore persists job applications. QueryJobs returns newest first.
type JobApplicationStore interface {
	// InsertJob returns ErrDuplicateConflict if the student already applied
	// to the same job.
	InsertJob(ctx context.Context, app *models.JobApplication) error
	GetJob(ctx context.Context, id string) (*models.JobApplication, error)
	QueryJobs(ctx context.Context, filter models.JobApplicationFilter) ([]*models.JobApplication, error)
	// MarkJobReviewed moves a pending job application to reviewed, with the
	// same ErrConflict / ErrNotFound contract as ConditionalUpdate.
	MarkJobReviewed(ctx context.Context, id string, reviewedBy string, at time.Time) error
}

// Indexer receives every application after it changes. Failures are logged
// and never fail the operation.
type Indexer interface {
	IndexApplication(ctx context.Context, app *models.Application) error
}
