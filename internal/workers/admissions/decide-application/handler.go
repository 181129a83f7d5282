// Package decideapplication admits or rejects a pending application on
// behalf of the owning institute or an admin. The reviewer is whoever the
// access token belongs to.
package decideapplication

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decide-application"

var schema = validation.MustCompile(inputSchema)

// Decider is implemented by lifecycle.Manager.
type Decider interface {
	Decide(ctx context.Context, applicationID string, reviewer models.Principal, outcome models.ApplicationStatus) (*models.Application, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// Recorder is implemented by observability.Observability.
type Recorder interface {
	RecordDecision(ctx context.Context, outcome string)
}

type Handler struct {
	config    *Config
	lifecycle Decider
	auth      Authenticator
	recorder  Recorder
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, lc Decider, auth Authenticator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		lifecycle: lc,
		auth:      auth,
		responder: camunda.NewResponder(TaskType, log),
		logger:    log,
	}
}

// WithRecorder counts successful decisions on r.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	h.recorder = r
	return h
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

	app, err := h.lifecycle.Decide(ctx, input.ApplicationID, reviewer, input.Outcome)
	if err != nil {
		return nil, err
	}

	if h.recorder != nil {
		h.recorder.RecordDecision(ctx, string(app.Status))
	}

	out := &Output{
		ApplicationID:  app.ID,
		Status:         app.Status,
		ReviewedBy:     app.ReviewedBy,
		ReviewedByName: app.ReviewedByName,
		StudentID:      app.StudentID,
	}
	if app.ReviewedAt != nil {
		out.ReviewedAt = *app.ReviewedAt
	}
	return out, nil
}
