// Package executor runs one sync attempt inside the worker process. It owns
// the lifecycle notification for the attempt, forwards pipeline progress to
// the submitter and guarantees that every attempt ends with exactly one
// JobResult, whatever happens inside the pipeline.
package executor

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/notify"
	"syncworker/internal/pipeline"
)

// MsgUnknownWorkType is the failure message for a descriptor with no usable type.
const MsgUnknownWorkType = "Unknown work type"

// Runner is the pipeline as seen by the executor.
type Runner interface {
	RunDownload(ctx context.Context, progress pipeline.ProgressFunc) (models.JobResult, error)
	RunUpload(ctx context.Context) models.JobResult
}

// ResultObserver is notified once per attempt with its outcome and duration.
type ResultObserver func(t job.Type, res models.JobResult, elapsed time.Duration)

// Executor is the remote side of a sync job.
type Executor struct {
	runner         Runner
	sink           notify.Sink
	channel        notify.Channel
	notificationID int
	onResult       ResultObserver
	logger         *log.Logger
	now            func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

func WithResultObserver(fn ResultObserver) Option {
	return func(e *Executor) { e.onResult = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an executor. The notification channel must already exist on
// sink (see notify.EnsureChannel); New has no side effects.
func New(r Runner, sink notify.Sink, opts ...Option) *Executor {
	e := &Executor{
		runner:         r,
		sink:           sink,
		channel:        notify.SyncChannel,
		notificationID: notify.SyncNotification,
		logger:         log.StandardLogger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one attempt for d and returns its JobResult. Progress and the
// final result are also sent to pub. Faults and panics raised by the
// pipeline are converted into a failed JobResult carrying their message.
func (e *Executor) Execute(ctx context.Context, d job.Descriptor, pub Publisher) (res models.JobResult) {
	start := e.now()
	logger := e.logger.WithFields(log.Fields{"job_id": d.ID(), "job_type": d.Type()})
	lc := newLifecycle(e.sink, e.channel.ID, e.notificationID, logger)
	lc.start()

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("sync attempt panicked")
			res = models.Failure(fmt.Sprint(r))
		}
		lc.finish(res)
		e.publish(logger, pub, models.Report{JobID: d.ID(), Result: &res, UpdatedAt: e.now()})
		if e.onResult != nil {
			e.onResult(d.Type(), res, e.now().Sub(start))
		}
		logger.WithFields(log.Fields{"outcome": res.Outcome, "elapsed": e.now().Sub(start)}).Infof("sync attempt finished: %s", res.Message)
	}()

	progress := func(ev models.ProgressEvent) {
		ev = lc.update(ev)
		e.publish(logger, pub, models.Report{JobID: d.ID(), Progress: &ev, UpdatedAt: e.now()})
	}

	logger.Info("sync attempt started")
	switch d.Type() {
	case job.TypeDownload:
		r, err := e.runner.RunDownload(ctx, progress)
		if err != nil {
			logger.WithError(err).Error("sync attempt aborted")
			return models.Failure(err.Error())
		}
		return r
	case job.TypeUpload:
		return e.runner.RunUpload(ctx)
	default:
		return models.Failure(MsgUnknownWorkType)
	}
}

func (e *Executor) publish(logger *log.Entry, pub Publisher, r models.Report) {
	if pub == nil {
		return
	}
	if err := pub.Publish(r); err != nil {
		logger.WithError(err).Warn("failed to publish sync report")
	}
}
