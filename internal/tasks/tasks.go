package tasks

// Task types and payload helpers for the sync jobs carried by Asynq.

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"syncworker/internal/job"
)

const (
	// TypeSyncJob is the task type for one sync attempt (upload or download).
	TypeSyncJob = "sync:run"
)

// NewSyncTask wraps a descriptor into an Asynq task. The descriptor is the
// only input the worker receives.
func NewSyncTask(d job.Descriptor, opts ...asynq.Option) (*asynq.Task, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: descriptor was not built", job.ErrInvalidPolicy)
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode sync descriptor: %w", err)
	}
	return asynq.NewTask(TypeSyncJob, payload, opts...), nil
}

// ParseSyncTask decodes the descriptor carried by t.
func ParseSyncTask(t *asynq.Task) (job.Descriptor, error) {
	if t.Type() != TypeSyncJob {
		return job.Descriptor{}, fmt.Errorf("unexpected task type %q", t.Type())
	}
	var d job.Descriptor
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		return job.Descriptor{}, fmt.Errorf("decode sync descriptor: %w", err)
	}
	return d, nil
}
