package scheduler

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"syncworker/internal/tasks"
)

// RetryPolicy holds the limits the scheduler applies on top of each job's
// own backoff policy.
type RetryPolicy struct {
	// Ceiling caps any backoff delay.
	Ceiling time.Duration
	// Floor is the smallest delay ever used after a failure.
	Floor time.Duration
	// ConstraintPoll is how long an attempt is deferred when its constraints
	// do not hold. It is not a backoff.
	ConstraintPoll time.Duration
}

// RetryDelayFunc computes the delay before retry n of t. Failed attempts use
// the backoff policy from the task's descriptor; constraint deferrals use
// ConstraintPoll.
func (p RetryPolicy) RetryDelayFunc() asynq.RetryDelayFunc {
	return func(n int, err error, t *asynq.Task) time.Duration {
		if errors.Is(err, ErrConstraintsUnmet) {
			return p.ConstraintPoll
		}
		d, perr := tasks.ParseSyncTask(t)
		if perr != nil {
			return asynq.DefaultRetryDelayFunc(n, err, t)
		}
		return p.Delay(d.Backoff().Delay(n, p.Ceiling))
	}
}

// Delay clamps a backoff delay into [Floor, Ceiling].
func (p RetryPolicy) Delay(d time.Duration) time.Duration {
	if d < p.Floor {
		d = p.Floor
	}
	if p.Ceiling > 0 && d > p.Ceiling {
		d = p.Ceiling
	}
	return d
}

// IsFailure keeps constraint deferrals out of the retry count, so the n passed
// to RetryDelayFunc counts failed attempts only.
func IsFailure(err error) bool {
	return !errors.Is(err, ErrConstraintsUnmet)
}
