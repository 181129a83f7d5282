// Package reviewjobapplication marks a job application as reviewed by the
// company that posted the job. The reviewer is the holder of the access
// token.
package reviewjobapplication

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "review-job-application"

var schema = validation.MustCompile(inputSchema)

type Reviewer interface {
	ReviewJob(ctx context.Context, id string, reviewer models.Principal) (*models.JobApplication, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

type Handler struct {
	config    *Config
	lifecycle Reviewer
	auth      Authenticator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, lc Reviewer, auth Authenticator, log logger.Logger) *Handler {
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
	reviewer, err := h.auth.Authenticate(ctx, input.AccessToken)
	if err != nil {
		return nil, err
	}

	app, err := h.lifecycle.ReviewJob(ctx, input.JobApplicationID, reviewer)
	if err != nil {
		return nil, err
	}
	out := &Output{
		JobApplicationID: app.ID,
		Status:           app.Status,
		ReviewedBy:       app.ReviewedBy,
	}
	if app.ReviewedAt != nil {
		out.ReviewedAt = *app.ReviewedAt
	}
	return out, nil
}
