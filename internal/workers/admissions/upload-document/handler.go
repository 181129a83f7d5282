// Package uploaddocument stores the token holder's transcript or certificate
// in the document bucket. Only students upload documents.
package uploaddocument

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "upload-document"

var schema = validation.MustCompile(inputSchema)

// Uploader is implemented by documents.Service.
type Uploader interface {
	Upload(ctx context.Context, studentID, kind, fileName, contentType string, body io.Reader) (*models.StudentDocument, error)
}

// Authenticator is implemented by session.Cache.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

type Handler struct {
	config    *Config
	documents Uploader
	auth      Authenticator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(config *Config, docs Uploader, auth Authenticator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		documents: docs,
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
		return nil, errors.NewUnauthorizedError(string(p.Role()) + " may not upload student documents")
	}

	// base64 inflates by 4/3; reject before decoding
	if base64.StdEncoding.DecodedLen(len(input.Content)) > h.config.MaxBytes+2 {
		return nil, tooLarge(h.config.MaxBytes)
	}
	body, err := base64.StdEncoding.DecodeString(input.Content)
	if err != nil {
		return nil, errors.NewInvalidInputError("content is not valid base64")
	}
	if len(body) > h.config.MaxBytes {
		return nil, tooLarge(h.config.MaxBytes)
	}

	doc, err := h.documents.Upload(ctx, student.ID, input.Kind, input.FileName, input.ContentType, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Output{Document: doc}, nil
}

func tooLarge(max int) error {
	return errors.NewInvalidInputError(fmt.Sprintf("document exceeds %d bytes", max)).
		WithMetadata("maxBytes", max)
}
