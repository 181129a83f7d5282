package memory

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(course string, at time.Time) *models.Application {
	return &models.Application{
		StudentID:        "stu-1",
		InstitutionID:    "inst-a",
		InstitutionEmail: "admissions@uni.ls",
		CourseName:       course,
		StudentMarks:     models.Marks{"overall": "70"},
		Status:           models.StatusPending,
		AppliedAt:        at,
	}
}

func TestInsert_GuardsQuotaAndDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	guard := lifecycle.SubmitGuard{MaxPerInstitution: 2}
	now := time.Now()

	require.NoError(t, s.Insert(ctx, newApp("CS101", now), guard))
	err := s.Insert(ctx, newApp("CS101", now), guard)
	assert.True(t, stderrors.Is(err, lifecycle.ErrDuplicateConflict))

	require.NoError(t, s.Insert(ctx, newApp("IT102", now), guard))
	err = s.Insert(ctx, newApp("BIS103", now), guard)
	assert.True(t, stderrors.Is(err, lifecycle.ErrQuotaConflict))

	other := newApp("BIS103", now)
	other.InstitutionID = "inst-b"
	assert.NoError(t, s.Insert(ctx, other, guard))
}

func TestInsert_QuotaBeforeDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	guard := lifecycle.SubmitGuard{MaxPerInstitution: 2}
	now := time.Now()

	require.NoError(t, s.Insert(ctx, newApp("CS101", now), guard))
	require.NoError(t, s.Insert(ctx, newApp("IT102", now), guard))

	err := s.Insert(ctx, newApp("CS101", now), guard)
	assert.True(t, stderrors.Is(err, lifecycle.ErrQuotaConflict), "got %v", err)
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	app := newApp("CS101", time.Now())
	require.NoError(t, s.Insert(ctx, app, lifecycle.SubmitGuard{}))
	require.NotEmpty(t, app.ID)

	app.StudentMarks["overall"] = "10"
	got, err := s.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "70", got.StudentMarks["overall"])

	got.Status = models.StatusAdmitted
	again, err := s.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)

	_, err = s.Get(ctx, "missing")
	assert.True(t, stderrors.Is(err, lifecycle.ErrNotFound))
}

func TestQuery_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, newApp("A", t0), lifecycle.SubmitGuard{}))
	require.NoError(t, s.Insert(ctx, newApp("B", t0.Add(time.Hour)), lifecycle.SubmitGuard{}))
	require.NoError(t, s.Insert(ctx, newApp("C", t0.Add(time.Hour)), lifecycle.SubmitGuard{}))

	got, err := s.Query(ctx, models.ApplicationFilter{InstitutionEmail: "ADMISSIONS@uni.ls"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{got[0].CourseName, got[1].CourseName, got[2].CourseName})

	none, err := s.Query(ctx, models.ApplicationFilter{StudentID: "someone-else"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConditionalUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	app := newApp("CS101", time.Now())
	require.NoError(t, s.Insert(ctx, app, lifecycle.SubmitGuard{}))

	review := models.Review{Status: models.StatusRejected, ReviewedAt: time.Now(), ReviewedBy: "inst-a", ReviewedByName: "Uni"}
	require.NoError(t, s.ConditionalUpdate(ctx, app.ID, models.StatusPending, review))

	err := s.ConditionalUpdate(ctx, app.ID, models.StatusPending, review)
	assert.True(t, stderrors.Is(err, lifecycle.ErrConflict))

	err = s.ConditionalUpdate(ctx, "missing", models.StatusPending, review)
	assert.True(t, stderrors.Is(err, lifecycle.ErrNotFound))

	got, err := s.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "Uni", got.ReviewedByName)
	require.NotNil(t, got.ReviewedAt)
}

func TestJobApplications(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := &models.JobApplication{StudentID: "stu-1", JobID: "job-1", CompanyID: "co-1", Status: models.JobStatusPending, AppliedAt: time.Now()}
	require.NoError(t, s.InsertJob(ctx, job))

	dup := *job
	dup.ID = ""
	assert.True(t, stderrors.Is(s.InsertJob(ctx, &dup), lifecycle.ErrDuplicateConflict))

	require.NoError(t, s.MarkJobReviewed(ctx, job.ID, "co-1", time.Now()))
	assert.True(t, stderrors.Is(s.MarkJobReviewed(ctx, job.ID, "co-1", time.Now()), lifecycle.ErrConflict))
	assert.True(t, stderrors.Is(s.MarkJobReviewed(ctx, "missing", "co-1", time.Now()), lifecycle.ErrNotFound))

	got, err := s.QueryJobs(ctx, models.JobApplicationFilter{CompanyID: "co-1", Status: models.JobStatusReviewed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "co-1", got[0].ReviewedBy)
}
