package lifecycle_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fixtures
// ==========================

var (
	student = models.StudentProfile{ID: "stu-1", Name: "Lerato Mokoena", Email: "lerato@example.com"}
	instA   = models.Institution{ID: "inst-a", Name: "Limkokwing University", Email: "admissions@limkokwing.ac.ls"}
	instB   = models.Institution{ID: "inst-b", Name: "National University of Lesotho", Email: "info@nul.ls"}
	faculty = models.Faculty{Name: "Faculty of ICT"}
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newManager(t *testing.T) (*lifecycle.Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	clock := &fixedClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := lifecycle.NewManager(store, store, lifecycle.Options{
		MaxApplicationsPerInstitution: 2,
		Policy:                        lifecycle.OverallFloor{Min: 50},
		Clock:                         clock.Now,
	}, logger.NewTestLogger(t))
	return m, store
}

func submitReq(inst models.Institution, course, overall string) lifecycle.SubmitRequest {
	return lifecycle.SubmitRequest{
		Student:     student,
		Institution: inst,
		Faculty:     faculty,
		Course:      models.Course{Name: course, Requirements: "Mathematics: 50%, English: 60%, Overall: 60%"},
		Marks:       models.Marks{"mathematics": "70", "english": "65", "overall": overall},
	}
}

func reviewerFor(inst models.Institution) models.Institute {
	return models.Institute{ID: inst.ID, Name: inst.Name, Email: inst.Email}
}

// ==========================
// Submit
// ==========================

func TestSubmit_CreatesPendingApplication(t *testing.T) {
	m, _ := newManager(t)

	app, err := m.Submit(context.Background(), submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, student.ID, app.StudentID)
	assert.Equal(t, student.Name, app.StudentName)
	assert.Equal(t, student.Email, app.StudentEmail)
	assert.Equal(t, instA.ID, app.InstitutionID)
	assert.Equal(t, instA.Name, app.InstitutionName)
	assert.Equal(t, instA.Email, app.InstitutionEmail)
	assert.Equal(t, faculty.Name, app.FacultyName)
	assert.Equal(t, "CS101", app.CourseName)
	assert.Equal(t, "65", app.StudentMarks["overall"])
	assert.False(t, app.AppliedAt.IsZero())
	assert.Nil(t, app.ReviewedAt)
	assert.Empty(t, app.ReviewedBy)
}

func TestSubmit_QuotaPerInstitution(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)
	_, err = m.Submit(ctx, submitReq(instA, "IT102", "65"))
	require.NoError(t, err)

	_, err = m.Submit(ctx, submitReq(instA, "BIS103", "65"))
	assert.True(t, stderrors.Is(err, errors.ErrQuotaExceeded), "got %v", err)

	_, err = m.Submit(ctx, submitReq(instB, "BIS103", "65"))
	assert.NoError(t, err)

	apps, err := m.ListForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 3)
}

func TestSubmit_Duplicate(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	_, err = m.Submit(ctx, submitReq(instA, "CS101", "80"))
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateApplication), "got %v", err)
}

func TestSubmit_QuotaCheckedBeforeDuplicate(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)
	_, err = m.Submit(ctx, submitReq(instA, "IT102", "65"))
	require.NoError(t, err)

	_, err = m.Submit(ctx, submitReq(instA, "CS101", "20"))
	assert.True(t, stderrors.Is(err, errors.ErrQuotaExceeded), "got %v", err)
}

func TestSubmit_DuplicateCheckedBeforeEligibility(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	_, err = m.Submit(ctx, submitReq(instA, "CS101", "10"))
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateApplication), "got %v", err)
}

func TestSubmit_OverallBoundary(t *testing.T) {
	tests := []struct {
		name    string
		marks   models.Marks
		wantErr bool
	}{
		{"exactly fifty", models.Marks{"overall": "50"}, false},
		{"forty nine", models.Marks{"overall": "49"}, true},
		{"empty", models.Marks{"overall": ""}, true},
		{"missing", models.Marks{"mathematics": "90"}, true},
		{"non numeric", models.Marks{"overall": "excellent"}, true},
		{"percent suffix", models.Marks{"overall": "75%"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newManager(t)
			req := submitReq(instA, "CS101", "")
			req.Marks = tt.marks

			app, err := m.Submit(context.Background(), req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, models.StatusPending, app.Status)
				return
			}
			assert.True(t, stderrors.Is(err, errors.ErrIneligibleMarks), "got %v", err)

			all, qerr := store.Query(context.Background(), models.ApplicationFilter{})
			require.NoError(t, qerr)
			assert.Empty(t, all, "a refused submission must not write")
		})
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	m, _ := newManager(t)
	req := submitReq(instA, "", "65")
	req.Student.ID = ""

	_, err := m.Submit(context.Background(), req)
	require.True(t, stderrors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "student.id")
	assert.Contains(t, err.Error(), "course.name")
}

func TestSubmit_ConcurrentQuotaIsStrict(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.Submit(ctx, submitReq(instA, fmt.Sprintf("COURSE-%d", i), "65"))
		}(i)
	}
	wg.Wait()

	apps, err := store.Query(ctx, models.ApplicationFilter{StudentID: student.ID, InstitutionID: instA.ID})
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

// ==========================
// Decide
// ==========================

func TestDecide_InstituteAdmits(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	decided, err := m.Decide(ctx, app.ID, reviewerFor(instA), models.StatusAdmitted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, decided.Status)
	require.NotNil(t, decided.ReviewedAt)
	assert.Equal(t, instA.ID, decided.ReviewedBy)
	assert.Equal(t, instA.Name, decided.ReviewedByName)

	stored, err := m.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, stored.Status)
	assert.Equal(t, decided.ReviewedAt, stored.ReviewedAt)
}

func TestDecide_CourseScenario(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, lifecycle.SubmitRequest{
		Student:     student,
		Institution: instA,
		Course:      models.Course{Name: "CS101"},
		Marks:       models.Marks{"overall": "65"},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, app.Status)

	decided, err := m.Decide(ctx, app.ID, reviewerFor(instA), models.StatusAdmitted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, decided.Status)
	assert.NotNil(t, decided.ReviewedAt)

	_, err = m.Decide(ctx, app.ID, reviewerFor(instA), models.StatusRejected)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyDecided), "got %v", err)

	stored, err := m.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, stored.Status)
}

func TestDecide_InstituteMatchedByEmail(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	reviewer := models.Institute{ID: "other-uid", Name: "Limkokwing", Email: "ADMISSIONS@limkokwing.ac.ls"}
	decided, err := m.Decide(ctx, app.ID, reviewer, models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, decided.Status)
	assert.Equal(t, "other-uid", decided.ReviewedBy)
}

func TestDecide_AdminDefaultsName(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	decided, err := m.Decide(ctx, app.ID, models.Admin{ID: "admin-1"}, models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, "Admin", decided.ReviewedByName)
	assert.Equal(t, "admin-1", decided.ReviewedBy)
}

func TestDecide_Preconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		id       func(app *models.Application) string
		reviewer models.Principal
		outcome  models.ApplicationStatus
		want     error
	}{
		{
			name:     "unknown id",
			id:       func(*models.Application) string { return "missing" },
			reviewer: reviewerFor(instA),
			outcome:  models.StatusAdmitted,
			want:     errors.ErrNotFound,
		},
		{
			name:     "pending is not an outcome",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: reviewerFor(instA),
			outcome:  models.StatusPending,
			want:     errors.ErrInvalidOutcome,
		},
		{
			name:     "unknown outcome",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: reviewerFor(instA),
			outcome:  "waitlisted",
			want:     errors.ErrInvalidOutcome,
		},
		{
			name:     "other institution",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: reviewerFor(instB),
			outcome:  models.StatusAdmitted,
			want:     errors.ErrUnauthorized,
		},
		{
			name:     "student",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: models.Student{ID: student.ID},
			outcome:  models.StatusAdmitted,
			want:     errors.ErrUnauthorized,
		},
		{
			name:     "company",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: models.Company{ID: "co-1", Approved: true},
			outcome:  models.StatusAdmitted,
			want:     errors.ErrUnauthorized,
		},
		{
			name:     "nil reviewer",
			id:       func(a *models.Application) string { return a.ID },
			reviewer: nil,
			outcome:  models.StatusAdmitted,
			want:     errors.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newManager(t)
			app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
			require.NoError(t, err)

			_, err = m.Decide(ctx, tt.id(app), tt.reviewer, tt.outcome)
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)

			stored, err := m.Get(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, stored.Status)
			assert.Nil(t, stored.ReviewedAt)
		})
	}
}

func TestDecide_PreconditionOrder(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	// pending application: a bad outcome is reported before the reviewer is checked
	_, err = m.Decide(ctx, app.ID, reviewerFor(instB), "waitlisted")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidOutcome), "got %v", err)

	_, err = m.Decide(ctx, app.ID, reviewerFor(instA), models.StatusAdmitted)
	require.NoError(t, err)

	// decided application: AlreadyDecided wins over every later precondition
	_, err = m.Decide(ctx, app.ID, reviewerFor(instB), models.StatusRejected)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyDecided), "got %v", err)
	_, err = m.Decide(ctx, app.ID, models.Student{ID: student.ID}, models.StatusPending)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyDecided), "got %v", err)

	_, err = m.Decide(ctx, "missing", reviewerFor(instB), "waitlisted")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestDecide_ConcurrentSingleWinner(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []models.ApplicationStatus
		conflict int
	)
	for i := 0; i < n; i++ {
		outcome := models.StatusAdmitted
		if i%2 == 1 {
			outcome = models.StatusRejected
		}
		wg.Add(1)
		go func(outcome models.ApplicationStatus) {
			defer wg.Done()
			decided, err := m.Decide(ctx, app.ID, reviewerFor(instA), outcome)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, decided.Status)
				return
			}
			if stderrors.Is(err, errors.ErrAlreadyDecided) {
				conflict++
			}
		}(outcome)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, conflict)

	stored, err := m.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
}

// ==========================
// Listing
// ==========================

func TestListForInstitution_MatchesIDOrEmail(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err)
	other := models.Institution{ID: "legacy-id", Name: instA.Name, Email: instA.Email}
	_, err = m.Submit(ctx, submitReq(other, "IT102", "65"))
	require.NoError(t, err)
	_, err = m.Submit(ctx, submitReq(instB, "BIS103", "65"))
	require.NoError(t, err)

	byID, err := m.ListForInstitution(ctx, models.InstitutionRef{ID: instA.ID})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	byEither, err := m.ListForInstitution(ctx, models.InstitutionRef{ID: instA.ID, Email: instA.Email})
	require.NoError(t, err)
	require.Len(t, byEither, 2)
	assert.Equal(t, "IT102", byEither[0].CourseName, "newest first")

	all, err := m.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = m.ListForInstitution(ctx, models.InstitutionRef{})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidInput))
}

// ==========================
// Status invariant
// ==========================

func TestStatusInvariant_ReviewedAtIffDecided(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	for i, outcome := range []models.ApplicationStatus{models.StatusAdmitted, models.StatusRejected, ""} {
		inst := models.Institution{ID: fmt.Sprintf("inst-%d", i), Email: fmt.Sprintf("i%d@example.com", i)}
		app, err := m.Submit(ctx, submitReq(inst, "CS101", "65"))
		require.NoError(t, err)
		if outcome != "" {
			_, err = m.Decide(ctx, app.ID, reviewerFor(inst), outcome)
			require.NoError(t, err)
		}
	}

	all, err := m.ListAll(ctx)
	require.NoError(t, err)
	for _, a := range all {
		assert.True(t, a.Status.Valid())
		assert.Equal(t, a.Status != models.StatusPending, a.ReviewedAt != nil, "application %s", a.ID)
		assert.Equal(t, a.Status != models.StatusPending, a.ReviewedBy != "", "application %s", a.ID)
	}
}

// ==========================
// Indexer
// ==========================

type recordingIndexer struct {
	mu   sync.Mutex
	seen []models.ApplicationStatus
	err  error
}

func (r *recordingIndexer) IndexApplication(_ context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, app.Status)
	return r.err
}

func TestManager_IndexesAfterEachChange(t *testing.T) {
	store := memory.New()
	idx := &recordingIndexer{err: fmt.Errorf("index unavailable")}
	m := lifecycle.NewManager(store, store, lifecycle.Options{Indexer: idx}, logger.NewNoOpLogger())
	ctx := context.Background()

	app, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.NoError(t, err, "index failures do not fail the operation")
	_, err = m.Decide(ctx, app.ID, reviewerFor(instA), models.StatusAdmitted)
	require.NoError(t, err)

	assert.Equal(t, []models.ApplicationStatus{models.StatusPending, models.StatusAdmitted}, idx.seen)
}

// ==========================
// Store failures
// ==========================

type failingStore struct {
	*memory.Store
}

func (failingStore) Query(context.Context, models.ApplicationFilter) ([]*models.Application, error) {
	return nil, fmt.Errorf("connection reset by peer")
}

func (failingStore) Get(context.Context, string) (*models.Application, error) {
	return nil, fmt.Errorf("connection reset by peer")
}

func TestManager_StoreFailureIsCollaboratorUnavailable(t *testing.T) {
	fs := failingStore{memory.New()}
	m := lifecycle.NewManager(fs, fs, lifecycle.Options{}, logger.NewNoOpLogger())
	ctx := context.Background()

	_, err := m.Submit(ctx, submitReq(instA, "CS101", "65"))
	require.True(t, stderrors.Is(err, errors.ErrCollaboratorUnavailable), "got %v", err)
	se, _ := errors.AsStandardError(err)
	assert.NotContains(t, se.Message, "connection reset")

	_, err = m.Decide(ctx, "any", models.Admin{ID: "a"}, models.StatusAdmitted)
	assert.True(t, stderrors.Is(err, errors.ErrCollaboratorUnavailable), "got %v", err)
}
