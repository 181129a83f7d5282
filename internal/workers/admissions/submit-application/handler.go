// Package submitapplication creates a pending course application for the
// student behind the access token, after the quota, duplicate and
// eligibility checks.
package submitapplication

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "submit-application"

var schema = validation.MustCompile(inputSchema)

// Submitter is implemented by lifecycle.Manager.
type Submitter interface {
	Submit(ctx context.Context, req lifecycle.SubmitRequest) (*models.Application, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

type Handler struct {
	config    *Config
	lifecycle Submitter
	auth      Authenticator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, lc Submitter, auth Authenticator, log logger.Logger) *Handler {
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
	student, ok := p.(models.Student)
	if !ok {
		return nil, errors.NewUnauthorizedError(string(p.Role()) + " may not apply to courses")
	}

	app, err := h.lifecycle.Submit(ctx, lifecycle.SubmitRequest{
		Student:     student.Profile(),
		Institution: input.Institution,
		Faculty:     input.Faculty,
		Course:      input.Course,
		Marks:       input.Marks,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID: app.ID,
		Status:        app.Status,
		AppliedAt:     app.AppliedAt,
		Application:   app,
	}, nil
}
