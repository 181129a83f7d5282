// Package notifydecision tells a student about the decision on their
// application by email and SMS.
package notifydecision

import (
	"context"
	stderrors "errors"

	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
	"admissions-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notify-decision"

var schema = validation.MustCompile(inputSchema)

type Reader interface {
	Get(ctx context.Context, applicationID string) (*models.Application, error)
}

// Directory supplies the student's current contact details.
type Directory interface {
	StudentProfile(ctx context.Context, id string) (models.StudentProfile, error)
}

// Notifier is implemented by notify.Notifier.
type Notifier interface {
	NotifyDecision(ctx context.Context, app *models.Application, student models.StudentProfile) ([]models.Notification, error)
}

type Handler struct {
	config    *Config
	lifecycle Reader
	directory Directory
	notifier  Notifier
	responder *camunda.Responder
	logger    logger.Logger
}

// NewHandler builds the handler. Without a directory, or when the student
// is no longer in it, the contact details snapshotted on the application
// are used.
func NewHandler(config *Config, lc Reader, dir Directory, n Notifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		lifecycle: lc,
		directory: dir,
		notifier:  n,
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

	app, err := h.lifecycle.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	student, err := h.student(ctx, app)
	if err != nil {
		return nil, err
	}

	recs, err := h.notifier.NotifyDecision(ctx, app, student)
	if err != nil {
		return nil, err
	}

	out := &Output{Notifications: recs}
	for _, r := range recs {
		if r.Status == models.DeliverySent {
			out.Delivered = true
		}
	}
	return out, nil
}

func (h *Handler) student(ctx context.Context, app *models.Application) (models.StudentProfile, error) {
	snapshot := models.StudentProfile{ID: app.StudentID, Name: app.StudentName, Email: app.StudentEmail}
	if h.directory == nil {
		return snapshot, nil
	}
	p, err := h.directory.StudentProfile(ctx, app.StudentID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			h.logger.Warn("student not in directory, using application snapshot", map[string]interface{}{
				"applicationId": app.ID,
				"studentId":     app.StudentID,
			})
			return snapshot, nil
		}
		return models.StudentProfile{}, err
	}
	return p, nil
}
