package reviewjobapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"
	"admissions-workers/internal/session/sessiontest"
	"admissions-workers/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokens = sessiontest.Tokens{
	"tok-econet":    models.Company{ID: "co-1", Name: "Econet", Approved: true},
	"tok-vodacom":   models.Company{ID: "co-2", Name: "Vodacom", Approved: true},
	"tok-suspended": models.Company{ID: "co-3", Name: "Suspended Ltd", Approved: true, Suspended: true},
	"tok-admin":     models.Admin{ID: "adm"},
	"tok-student":   models.Student{ID: "stu-1", Name: "Neo"},
}

func setup(t *testing.T) (*Handler, *lifecycle.Manager, string) {
	t.Helper()
	store := memory.New()
	lc := lifecycle.NewManager(store, store, lifecycle.Options{}, logger.NewTestLogger(t))
	app, err := lc.SubmitJob(context.Background(),
		models.StudentProfile{ID: "stu-1"},
		models.JobPosting{ID: "job-1", CompanyID: "co-1", CompanyName: "Econet"})
	require.NoError(t, err)
	return NewHandler(DefaultConfig(), lc, sessiontest.NewCache(t, tokens), logger.NewTestLogger(t)), lc, app.ID
}

func TestHandler_Execute_OwningCompany(t *testing.T) {
	h, _, id := setup(t)

	out, err := h.Execute(context.Background(), &Input{JobApplicationID: id, AccessToken: "tok-econet"})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusReviewed, out.Status)
	assert.Equal(t, "co-1", out.ReviewedBy)
	assert.False(t, out.ReviewedAt.IsZero())

	_, err = h.Execute(context.Background(), &Input{JobApplicationID: id, AccessToken: "tok-admin"})
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyDecided))
}

func TestHandler_Execute_Refused(t *testing.T) {
	tests := []struct {
		name  string
		token string
		id    string
		want  error
	}{
		{"other company", "tok-vodacom", "", errors.ErrUnauthorized},
		{"suspended company", "tok-suspended", "", errors.ErrUnauthorized},
		{"student", "tok-student", "", errors.ErrUnauthorized},
		{"inactive token", "tok-expired", "", errors.ErrUnauthorized},
		{"missing token", "", "", errors.ErrInvalidInput},
		{"unknown id", "tok-admin", "missing", errors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, id := setup(t)
			if tt.id != "" {
				id = tt.id
			}
			_, err := h.Execute(context.Background(), &Input{JobApplicationID: id, AccessToken: tt.token})
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHandler_Execute_IgnoresClaimedReviewer(t *testing.T) {
	h, lc, id := setup(t)

	vars := `{"jobApplicationId":"` + id + `","accessToken":"tok-vodacom",
		"reviewer":{"role":"company","id":"co-1","approved":true}}`
	var input Input
	require.NoError(t, json.Unmarshal([]byte(vars), &input))

	_, err := h.Execute(context.Background(), &input)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized), "got %v", err)

	jobs, err := lc.ListJobsForCompany(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusPending, jobs[0].Status)
}
