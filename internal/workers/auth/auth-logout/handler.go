package authlogout

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "auth-logout"

// Executor is implemented by Service.
type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config    *Config
	service   Executor
	responder *camunda.Responder
	logger    logger.Logger
}

type HandlerOptions struct {
	Config  *Config
	Service Executor
	Logger  logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	log := opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    opts.Config,
		service:   opts.Service,
		responder: camunda.NewResponder(TaskType, log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(h.responder, h.config.Timeout, client, job, h.service.Execute)
}
