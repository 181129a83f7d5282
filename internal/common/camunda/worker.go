// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every worker package's Handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions are the per-worker settings from configuration.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// CamundaWorker is one open job subscription.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker subscribes handler to taskType. Each job is timed, counted as
// active while running and wrapped in a span when obs is non-nil.
func NewWorker(
	client zbc.Client,
	taskType string,
	opts WorkerOptions,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			start := time.Now()
			metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
			defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

			if obs != nil {
				_, span := obs.StartSpan(context.Background(), taskType, job.Key)
				defer span.End()
			}

			handler.Handle(jc, job)

			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			if obs != nil {
				obs.RecordJobProcessed(context.Background(), taskType, "handled")
				obs.RecordJobDuration(context.Background(), taskType, time.Since(start), "handled")
			}
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}

// Responder completes or fails jobs on behalf of a worker handler and keeps
// the job outcome metrics.
type Responder struct {
	taskType   string
	logger     logger.Logger
	errHandler *errors.ErrorHandler
}

func NewResponder(taskType string, log logger.Logger) *Responder {
	return &Responder{
		taskType:   taskType,
		logger:     log,
		errHandler: errors.NewErrorHandler(log),
	}
}

// Complete sends the output as job variables.
func (r *Responder) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		r.Fail(ctx, client, job, err)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.Key})
}

// Fail reports err: retryable kinds fail the job, the rest throw a BPMN error.
func (r *Responder) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := errors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(code)).Inc()
	r.errHandler.HandleJobError(ctx, client, job, err)
}

// HandleJob decodes the job variables into In, runs execute under timeout
// and completes or fails the job with the result.
func HandleJob[In any, Out any](
	r *Responder,
	timeout time.Duration,
	client worker.JobClient,
	job entities.Job,
	execute func(context.Context, *In) (*Out, error),
) {
	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	var input In
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		r.Fail(context.Background(), client, job, errors.NewInvalidInputError("parse job variables: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	output, err := execute(ctx, &input)
	if err != nil {
		// report on a fresh context; ctx may be the reason execute failed
		r.Fail(context.Background(), client, job, err)
		return
	}
	r.Complete(context.Background(), client, job, output)
}
