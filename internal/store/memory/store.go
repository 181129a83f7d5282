// Package memory is an in-process document store with the same guarantees
// as the Postgres store: one mutex serialises every write, so quota,
// duplicate and conditional-update checks are strict.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/google/uuid"
)

type Store struct {
	mu   sync.RWMutex
	apps map[string]*models.Application
	jobs map[string]*models.JobApplication
	// seq orders records inserted within the same clock tick
	seq   int64
	order map[string]int64
}

func New() *Store {
	return &Store{
		apps:  map[string]*models.Application{},
		jobs:  map[string]*models.JobApplication{},
		order: map[string]int64{},
	}
}

var (
	_ lifecycle.ApplicationStore    = (*Store)(nil)
	_ lifecycle.JobApplicationStore = (*Store)(nil)
)

func (s *Store) Insert(_ context.Context, app *models.Application, guard lifecycle.SubmitGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, duplicate := 0, false
	for _, a := range s.apps {
		if a.StudentID != app.StudentID || a.InstitutionID != app.InstitutionID {
			continue
		}
		held++
		if a.CourseName == app.CourseName {
			duplicate = true
		}
	}
	if guard.MaxPerInstitution > 0 && held >= guard.MaxPerInstitution {
		return lifecycle.ErrQuotaConflict
	}
	if duplicate {
		return lifecycle.ErrDuplicateConflict
	}

	app.ID = uuid.NewString()
	s.apps[app.ID] = copyApp(app)
	s.seq++
	s.order[app.ID] = s.seq
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, lifecycle.ErrNotFound)
	}
	return copyApp(a), nil
}

func (s *Store) Query(_ context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Application, 0)
	for _, a := range s.apps {
		if f.Matches(a) {
			out = append(out, copyApp(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.newer(out[i].AppliedAt, out[i].ID, out[j].AppliedAt, out[j].ID)
	})
	return out, nil
}

func (s *Store) ConditionalUpdate(_ context.Context, id string, expected models.ApplicationStatus, review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return fmt.Errorf("application %s: %w", id, lifecycle.ErrNotFound)
	}
	if a.Status != expected {
		return lifecycle.ErrConflict
	}
	review.Apply(a)
	return nil
}

func (s *Store) InsertJob(_ context.Context, app *models.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.StudentID == app.StudentID && j.JobID == app.JobID {
			return lifecycle.ErrDuplicateConflict
		}
	}
	app.ID = uuid.NewString()
	s.jobs[app.ID] = copyJob(app)
	s.seq++
	s.order[app.ID] = s.seq
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job application %s: %w", id, lifecycle.ErrNotFound)
	}
	return copyJob(j), nil
}

func (s *Store) QueryJobs(_ context.Context, f models.JobApplicationFilter) ([]*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.JobApplication, 0)
	for _, j := range s.jobs {
		if f.Matches(j) {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return s.newer(out[i].AppliedAt, out[i].ID, out[k].AppliedAt, out[k].ID)
	})
	return out, nil
}

func (s *Store) MarkJobReviewed(_ context.Context, id, reviewedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job application %s: %w", id, lifecycle.ErrNotFound)
	}
	if j.Status != models.JobStatusPending {
		return lifecycle.ErrConflict
	}
	j.Status = models.JobStatusReviewed
	j.ReviewedAt = &at
	j.ReviewedBy = reviewedBy
	return nil
}

// newer orders by time descending, then by insertion order descending.
// Callers hold s.mu.
func (s *Store) newer(ta time.Time, ida string, tb time.Time, idb string) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return s.order[ida] > s.order[idb]
}

func copyApp(a *models.Application) *models.Application {
	cp := *a
	if a.StudentMarks != nil {
		cp.StudentMarks = make(models.Marks, len(a.StudentMarks))
		for k, v := range a.StudentMarks {
			cp.StudentMarks[k] = v
		}
	}
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

func copyJob(j *models.JobApplication) *models.JobApplication {
	cp := *j
	if j.ReviewedAt != nil {
		t := *j.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}
