// Package scheduler is the boundary between sync submitters and the worker
// processes. Submissions become Asynq tasks in Redis; the worker side defers
// attempts until constraints hold and retries failures with the backoff
// policy carried by the job descriptor.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"syncworker/internal/job"
	"syncworker/internal/tasks"
)

// ErrOutOfQuota is returned by Submit when an expedited job cannot be
// granted expedited execution and its fallback is to drop the request.
var ErrOutOfQuota = errors.New("expedited quota exhausted")

// Enqueuer is the part of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AttemptHandle identifies a submitted job in the queue.
type AttemptHandle struct {
	JobID     string `json:"job_id"`
	Queue     string `json:"queue"`
	Expedited bool   `json:"expedited"`
}

// ClientOptions tunes submissions.
type ClientOptions struct {
	ExpeditedQueue string
	DefaultQueue   string
	MaxRetry       int
	Retention      time.Duration
	// ExpeditedRate is the sustained number of expedited grants per second,
	// ExpeditedBurst the bucket size.
	ExpeditedRate  float64
	ExpeditedBurst int
}

// Client submits job descriptors. It never waits for an attempt to run.
type Client struct {
	enq      Enqueuer
	opts     ClientOptions
	quota    *rate.Limiter
	onSubmit func(queue string, expedited bool)
}

func NewClient(enq Enqueuer, opts ClientOptions, onSubmit func(queue string, expedited bool)) *Client {
	if opts.DefaultQueue == "" {
		opts.DefaultQueue = "default"
	}
	if opts.ExpeditedQueue == "" {
		opts.ExpeditedQueue = "expedited"
	}
	return &Client{
		enq:      enq,
		opts:     opts,
		quota:    rate.NewLimiter(rate.Limit(opts.ExpeditedRate), opts.ExpeditedBurst),
		onSubmit: onSubmit,
	}
}

// Submit enqueues d. An expedited descriptor goes to the expedited queue while
// quota remains; afterwards its fallback decides between a silent downgrade to
// the default queue and ErrOutOfQuota.
func (c *Client) Submit(ctx context.Context, d job.Descriptor) (AttemptHandle, error) {
	queue, expedited, err := c.route(d)
	if err != nil {
		return AttemptHandle{}, err
	}

	task, err := tasks.NewSyncTask(d)
	if err != nil {
		return AttemptHandle{}, err
	}
	opts := []asynq.Option{
		asynq.TaskID(d.ID()),
		asynq.Queue(queue),
		asynq.MaxRetry(c.opts.MaxRetry),
	}
	if c.opts.Retention > 0 {
		opts = append(opts, asynq.Retention(c.opts.Retention))
	}

	info, err := c.enq.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return AttemptHandle{}, fmt.Errorf("enqueue sync job %s: %w", d.ID(), err)
	}
	log.WithFields(log.Fields{"job_id": info.ID, "queue": info.Queue, "type": d.Type()}).Info("sync job submitted")
	if c.onSubmit != nil {
		c.onSubmit(info.Queue, expedited)
	}
	return AttemptHandle{JobID: info.ID, Queue: info.Queue, Expedited: expedited}, nil
}

func (c *Client) route(d job.Descriptor) (string, bool, error) {
	p := d.Priority()
	if !p.Expedited {
		return c.opts.DefaultQueue, false, nil
	}
	if c.quota.Allow() {
		return c.opts.ExpeditedQueue, true, nil
	}
	switch p.Fallback {
	case job.FallbackDropWorkRequest:
		return "", false, fmt.Errorf("submit %s: %w", d.ID(), ErrOutOfQuota)
	default:
		log.WithField("job_id", d.ID()).Debug("expedited quota exhausted, running as non-expedited")
		return c.opts.DefaultQueue, false, nil
	}
}

func (c *Client) Close() error {
	return c.enq.Close()
}
