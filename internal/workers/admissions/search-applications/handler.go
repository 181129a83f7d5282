// Package searchapplications runs free-text searches over applications for
// admins and, scoped to their own applications, institutes.
package searchapplications

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"
	"admissions-workers/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "search-applications"

var schema = validation.MustCompile(inputSchema)

// Searcher is implemented by search.Index.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

type Handler struct {
	config    *Config
	index     Searcher
	auth      Authenticator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, index Searcher, auth Authenticator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		index:     index,
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

	q, err := scope(p, input.Query)
	if err != nil {
		return nil, err
	}

	res, err := h.index.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	out := &Output{Total: res.Total, Applications: res.Applications}
	if out.Applications == nil {
		out.Applications = []*models.Application{}
	}
	return out, nil
}

// scope restricts q to what p may see.
func scope(p models.Principal, q search.Query) (search.Query, error) {
	deny := func(role string) error {
		return errors.NewUnauthorizedError(role + " may not search applications")
	}
	err := models.Match(p,
		func(models.Student) error { return deny("student") },
		func(i models.Institute) error {
			q.InstitutionID = i.ID
			return nil
		},
		func(models.Admin) error { return nil },
		func(models.Company) error { return deny("company") },
	)
	return q, err
}
