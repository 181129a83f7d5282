// Package listapplications returns the applications a principal may see:
// a student its own, an institute those addressed to it, an admin all of
// them and a company the job applications to its postings.
package listapplications

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "list-applications"

var schema = validation.MustCompile(inputSchema)

// Lister is implemented by lifecycle.Manager.
type Lister interface {
	ListForStudent(ctx context.Context, studentID string) ([]*models.Application, error)
	ListForInstitution(ctx context.Context, ref models.InstitutionRef) ([]*models.Application, error)
	ListAll(ctx context.Context) ([]*models.Application, error)
	ListJobsForStudent(ctx context.Context, studentID string) ([]*models.JobApplication, error)
	ListJobsForCompany(ctx context.Context, companyID string) ([]*models.JobApplication, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

type Handler struct {
	config    *Config
	lifecycle Lister
	auth      Authenticator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, lc Lister, auth Authenticator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		lifecycle: lc,
		auth:      auth,
		responder: camunda.NewResponder(TaskType, log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(h.responder, h.config.Timeout, client, job, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := schema.Validate(input); err != nil {
		return nil, err
	}
	p, err := h.auth.Authenticate(ctx, input.AccessToken)
	if err != nil {
		return nil, err
	}

	type listing struct {
		apps []*models.Application
		jobs []*models.JobApplication
		err  error
	}
	l := models.Match(p,
		func(s models.Student) listing {
			apps, err := h.lifecycle.ListForStudent(ctx, s.ID)
			if err != nil {
				return listing{err: err}
			}
			jobs, err := h.lifecycle.ListJobsForStudent(ctx, s.ID)
			return listing{apps: apps, jobs: jobs, err: err}
		},
		func(i models.Institute) listing {
			apps, err := h.lifecycle.ListForInstitution(ctx, models.InstitutionRef{ID: i.ID, Email: i.Email})
			return listing{apps: apps, err: err}
		},
		func(models.Admin) listing {
			apps, err := h.lifecycle.ListAll(ctx)
			return listing{apps: apps, err: err}
		},
		func(c models.Company) listing {
			jobs, err := h.lifecycle.ListJobsForCompany(ctx, c.ID)
			return listing{jobs: jobs, err: err}
		},
	)
	if l.err != nil {
		return nil, l.err
	}

	out := &Output{
		Applications:    l.apps,
		JobApplications: l.jobs,
	}
	if out.Applications == nil {
		out.Applications = []*models.Application{}
	}
	if out.JobApplications == nil {
		out.JobApplications = []*models.JobApplication{}
	}
	out.Total = len(out.Applications) + len(out.JobApplications)

	h.logger.Debug("applications listed", map[string]interface{}{
		"role":  string(p.Role()),
		"total": out.Total,
	})
	return out, nil
}
