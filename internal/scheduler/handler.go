package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"syncworker/internal/executor"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/tasks"
)

// Executor runs one attempt of a job.
type Executor interface {
	Execute(ctx context.Context, d job.Descriptor, pub executor.Publisher) models.JobResult
}

// AttemptFailedError is returned to Asynq for a failed JobResult so the task
// is rescheduled with the job's backoff.
type AttemptFailedError struct {
	Result models.JobResult
}

func (e *AttemptFailedError) Error() string { return e.Result.Message }

// Handler is the worker-side Asynq handler for sync tasks.
type Handler struct {
	exec         Executor
	checker      ConstraintChecker
	publisherFor func(t *asynq.Task) executor.Publisher
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPublisherFactory replaces the default result-writer publisher.
func WithPublisherFactory(fn func(t *asynq.Task) executor.Publisher) HandlerOption {
	return func(h *Handler) { h.publisherFor = fn }
}

func NewHandler(exec Executor, checker ConstraintChecker, opts ...HandlerOption) *Handler {
	h := &Handler{exec: exec, checker: checker, publisherFor: resultWriterPublisher}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	d, err := tasks.ParseSyncTask(t)
	if err != nil {
		// A payload that does not decode will never run.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logger := log.WithField("job_id", d.ID())
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		logger = logger.WithField("retried", retried)
	}

	if err := checkConstraints(ctx, h.checker, d); err != nil {
		logger.WithError(err).Info("deferring sync attempt")
		return err
	}

	res := h.exec.Execute(ctx, d, h.publisherFor(t))
	if !res.Succeeded() {
		return &AttemptFailedError{Result: res}
	}
	return nil
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(tasks.TypeSyncJob, h)
}

// WriterPublisher JSON-encodes each report into w. With an Asynq result writer
// every write replaces the previous one, so readers see the latest report.
type WriterPublisher struct {
	W io.Writer
}

func (p WriterPublisher) Publish(r models.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = p.W.Write(b)
	return err
}

func resultWriterPublisher(t *asynq.Task) executor.Publisher {
	rw := t.ResultWriter()
	if rw == nil {
		return nil
	}
	return WriterPublisher{W: rw}
}
