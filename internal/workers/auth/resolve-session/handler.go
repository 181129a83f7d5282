// Package resolvesession turns an access token into the principal behind
// it, through the session cache.
package resolvesession

import (
	"context"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "resolve-session"

var schema = validation.MustCompile(inputSchema)

// Resolver is implemented by session.Cache.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, bool, error)
}

type Handler struct {
	config    *Config
	sessions  Resolver
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, sessions Resolver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		sessions:  sessions,
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

	sess, cached, err := h.sessions.Resolve(ctx, input.AccessToken)
	if err != nil {
		return nil, err
	}
	if h.config.RequireVerifiedEmail && !sess.EmailVerified {
		return nil, errors.NewUnauthorizedError("email address is not verified")
	}

	h.logger.Debug("session resolved", map[string]interface{}{
		"userId": sess.UserID,
		"role":   string(sess.Principal.Role),
		"cached": cached,
	})
	return &Output{
		UserID:        sess.UserID,
		Principal:     sess.Principal,
		EmailVerified: sess.EmailVerified,
		Cached:        cached,
		ExpiresAt:     sess.ExpiresAt,
	}, nil
}
