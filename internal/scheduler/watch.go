package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"syncworker/internal/models"
)

// TaskInspector is the part of *asynq.Inspector the watcher needs.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListActiveTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListCompletedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// Status is a snapshot of a submitted job as seen from the queue.
type Status struct {
	JobID         string         `json:"job_id"`
	Queue         string         `json:"queue"`
	State         string         `json:"state"`
	Retried       int            `json:"retried"`
	MaxRetry      int            `json:"max_retry"`
	LastErr       string         `json:"last_error,omitempty"`
	NextProcessAt time.Time      `json:"next_process_at,omitempty"`
	Report        *models.Report `json:"report,omitempty"`
}

// Watcher reads progress and results back from the queue.
type Watcher struct {
	insp     TaskInspector
	interval time.Duration
}

func NewWatcher(insp TaskInspector, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{insp: insp, interval: interval}
}

// Status returns the current state of the job behind h.
func (w *Watcher) Status(h AttemptHandle) (Status, error) {
	info, err := w.insp.GetTaskInfo(h.Queue, h.JobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return Status{}, fmt.Errorf("job %s in queue %s: %w", h.JobID, h.Queue, models.ErrNotFound)
		}
		return Status{}, fmt.Errorf("get job %s: %w", h.JobID, err)
	}
	return statusFromInfo(info), nil
}

// Find looks the job up in each queue in turn.
func (w *Watcher) Find(jobID string, queues ...string) (Status, error) {
	for _, q := range queues {
		st, err := w.Status(AttemptHandle{JobID: jobID, Queue: q})
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return Status{}, err
		}
	}
	return Status{}, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
}

// List returns every job known to queue, in all states.
func (w *Watcher) List(queue string) ([]Status, error) {
	listers := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		w.insp.ListActiveTasks,
		w.insp.ListPendingTasks,
		w.insp.ListScheduledTasks,
		w.insp.ListRetryTasks,
		w.insp.ListCompletedTasks,
		w.insp.ListArchivedTasks,
	}
	var out []Status
	for _, list := range listers {
		infos, err := list(queue)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("list queue %s: %w", queue, err)
		}
		for _, info := range infos {
			out = append(out, statusFromInfo(info))
		}
	}
	return out, nil
}

// Watch polls the job and emits each new report. The channel is closed after
// the first report that carries a JobResult, when ctx is done, or when the
// job disappears from the queue.
func (w *Watcher) Watch(ctx context.Context, h AttemptHandle) <-chan models.Report {
	out := make(chan models.Report)
	go func() {
		defer close(out)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var last time.Time
		for {
			st, err := w.Status(h)
			switch {
			case errors.Is(err, models.ErrNotFound):
				return
			case err != nil:
				log.WithError(err).WithField("job_id", h.JobID).Warn("failed to poll sync job")
			default:
				for _, rep := range nextReports(st, last) {
					select {
					case out <- rep:
					case <-ctx.Done():
						return
					}
					if rep.Done() {
						return
					}
					last = rep.UpdatedAt
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// nextReports returns what to emit for st given the timestamp of the last
// emitted report. A job that reached a terminal queue state without a stored
// JobResult (undecodable payload, lost final write, worker crash after the
// last retry) gets a synthesized one so the stream always ends with a result:
// success with an empty message when completed, LastErr when failed.
func nextReports(st Status, last time.Time) []models.Report {
	var out []models.Report
	if st.Report != nil && st.Report.UpdatedAt.After(last) {
		out = append(out, *st.Report)
	}
	if st.Report != nil && st.Report.Done() {
		return out
	}

	var res models.JobResult
	switch st.State {
	case models.JobStatusCompleted:
		res = models.Success("")
	case models.JobStatusFailed:
		res = models.Failure(st.LastErr)
	default:
		return out
	}
	updated := time.Now()
	if !updated.After(last) {
		updated = last.Add(time.Nanosecond)
	}
	return append(out, models.Report{JobID: st.JobID, Result: &res, UpdatedAt: updated})
}

func statusFromInfo(info *asynq.TaskInfo) Status {
	st := Status{
		JobID:         info.ID,
		Queue:         info.Queue,
		State:         stateName(info.State),
		Retried:       info.Retried,
		MaxRetry:      info.MaxRetry,
		LastErr:       info.LastErr,
		NextProcessAt: info.NextProcessAt,
	}
	if len(info.Result) > 0 {
		var rep models.Report
		if err := json.Unmarshal(info.Result, &rep); err == nil {
			st.Report = &rep
		}
	}
	return st
}

func stateName(s asynq.TaskState) string {
	switch s {
	case asynq.TaskStateActive:
		return models.JobStatusActive
	case asynq.TaskStatePending:
		return models.JobStatusPending
	case asynq.TaskStateScheduled:
		return models.JobStatusScheduled
	case asynq.TaskStateRetry:
		return models.JobStatusRetrying
	case asynq.TaskStateArchived:
		return models.JobStatusFailed
	case asynq.TaskStateCompleted:
		return models.JobStatusCompleted
	}
	return models.JobStatusUnknown
}
