// Package institutionstats computes admission statistics for one
// institution or the system report across all of them.
package institutionstats

import (
	"context"
	"strings"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "institution-stats"

var schema = validation.MustCompile(inputSchema)

// Reader is implemented by lifecycle.Manager.
type Reader interface {
	ListAll(ctx context.Context) ([]*models.Application, error)
}

// Directory lists the registered institutions.
type Directory interface {
	Institutions(ctx context.Context) ([]models.InstitutionRef, error)
}

type Handler struct {
	config    *Config
	lifecycle Reader
	directory Directory
	responder *camunda.Responder
	logger    logger.Logger
}

// NewHandler builds the handler. With a nil directory the system report
// covers the institutions that appear in applications.
func NewHandler(config *Config, lc Reader, dir Directory, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		lifecycle: lc,
		directory: dir,
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

	apps, err := h.lifecycle.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if input.Institution != nil {
		stats := lifecycle.InstitutionStats(*input.Institution, apps)
		return &Output{Stats: &stats}, nil
	}

	institutions, err := h.institutions(ctx, apps)
	if err != nil {
		return nil, err
	}
	report := lifecycle.BuildSystemReport(institutions, apps)
	return &Output{Report: &report}, nil
}

func (h *Handler) institutions(ctx context.Context, apps []*models.Application) ([]models.InstitutionRef, error) {
	if h.directory != nil {
		refs, err := h.directory.Institutions(ctx)
		if err != nil {
			return nil, errors.NewCollaboratorUnavailableError("directory", err)
		}
		return refs, nil
	}

	seen := make(map[string]bool)
	var refs []models.InstitutionRef
	// apps are newest first; keep the newest snapshot of each institution
	for _, a := range apps {
		key := a.InstitutionID
		if key == "" {
			key = strings.ToLower(a.InstitutionEmail)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, models.InstitutionRef{ID: a.InstitutionID, Email: a.InstitutionEmail, Name: a.InstitutionName})
	}
	return refs, nil
}
