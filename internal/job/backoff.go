package job

import (
	"fmt"
	"time"
)

// BackoffKind selects how the retry delay grows.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
)

// BackoffPolicy is the retry delay rule applied after a failed attempt.
// The initial delay is InitialDelay * Unit.
type BackoffPolicy struct {
	Kind         BackoffKind   `json:"kind"`
	InitialDelay int64         `json:"initial_delay"`
	Unit         time.Duration `json:"unit"`
}

func (p BackoffPolicy) validate() error {
	switch p.Kind {
	case BackoffExponential, BackoffLinear:
	default:
		return fmt.Errorf("%w: unknown backoff kind %q", ErrInvalidPolicy, p.Kind)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("%w: negative backoff delay %d", ErrInvalidPolicy, p.InitialDelay)
	}
	if p.Unit <= 0 {
		return fmt.Errorf("%w: backoff unit must be positive", ErrInvalidPolicy)
	}
	return nil
}

// Initial returns the first retry delay.
func (p BackoffPolicy) Initial() time.Duration {
	return time.Duration(p.InitialDelay) * p.Unit
}

// Delay returns the wait before retry n (0-based: n=0 is the first retry).
// Exponential grows as initial*2^n, linear as initial*(n+1). A positive
// ceiling caps the result.
func (p BackoffPolicy) Delay(n int, ceiling time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	initial := p.Initial()
	var d time.Duration
	switch p.Kind {
	case BackoffLinear:
		d = initial * time.Duration(n+1)
		if n > 0 && d/time.Duration(n+1) != initial {
			d = maxDuration
		}
	default:
		d = initial
		for i := 0; i < n; i++ {
			if d > maxDuration/2 {
				d = maxDuration
				break
			}
			d *= 2
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

const maxDuration = time.Duration(1<<63 - 1)
