// Package job defines the job descriptor submitted to the scheduler and the
// policy attached to it: required constraints, retry backoff and the
// expedited-priority fallback.
//
// A Descriptor is built once with Build and never changes afterwards. The
// scheduler boundary is the only consumer of the policy fields; the executor
// only looks at the job type.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidJobType is returned by Build when the job type is not a known variant.
	ErrInvalidJobType = errors.New("invalid job type")
	// ErrInvalidPolicy is returned by Build when the constraint, backoff or priority policy is malformed.
	ErrInvalidPolicy = errors.New("invalid job policy")
)

// Type is the kind of synchronization a job performs.
type Type string

const (
	TypeUpload   Type = "upload"
	TypeDownload Type = "download"
)

// ParseType maps a user supplied job type (case-insensitive) to a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeUpload:
		return TypeUpload, nil
	case TypeDownload:
		return TypeDownload, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidJobType, s)
}

// Constraint is an environmental condition that must hold before an attempt starts.
type Constraint string

const (
	ConstraintNetworkConnected Constraint = "network_connected"
)

func (c Constraint) valid() bool {
	return c == ConstraintNetworkConnected
}

// Fallback tells the scheduler what to do when expedited execution cannot be granted.
type Fallback string

const (
	// FallbackRunAsNonExpedited downgrades the job to standard priority.
	FallbackRunAsNonExpedited Fallback = "run_as_non_expedited"
	// FallbackDropWorkRequest rejects the submission.
	FallbackDropWorkRequest Fallback = "drop_work_request"
)

// PriorityFallback is the execution-priority part of the policy.
type PriorityFallback struct {
	Expedited bool     `json:"expedited"`
	Fallback  Fallback `json:"fallback"`
}

// Descriptor describes one unit of background work. It cannot be changed after Build.
type Descriptor struct {
	id          string
	jobType     Type
	constraints []Constraint
	backoff     BackoffPolicy
	priority    PriorityFallback
}

// Build validates its arguments and returns a new Descriptor with a fresh ID.
// No Descriptor is produced when validation fails.
func Build(jobType string, constraints []Constraint, backoff BackoffPolicy, priority PriorityFallback) (Descriptor, error) {
	return build(uuid.NewString(), jobType, constraints, backoff, priority)
}

func build(id, jobType string, constraints []Constraint, backoff BackoffPolicy, priority PriorityFallback) (Descriptor, error) {
	t, err := ParseType(jobType)
	if err != nil {
		return Descriptor{}, err
	}
	if err := backoff.validate(); err != nil {
		return Descriptor{}, err
	}
	switch priority.Fallback {
	case FallbackRunAsNonExpedited, FallbackDropWorkRequest:
	case "":
		if priority.Expedited {
			return Descriptor{}, fmt.Errorf("%w: expedited job without fallback", ErrInvalidPolicy)
		}
	default:
		return Descriptor{}, fmt.Errorf("%w: unknown fallback %q", ErrInvalidPolicy, priority.Fallback)
	}

	// Dedupe while keeping caller order.
	seen := make(map[Constraint]bool, len(constraints))
	cs := make([]Constraint, 0, len(constraints))
	for _, c := range constraints {
		if !c.valid() {
			return Descriptor{}, fmt.Errorf("%w: unknown constraint %q", ErrInvalidPolicy, c)
		}
		if !seen[c] {
			seen[c] = true
			cs = append(cs, c)
		}
	}

	return Descriptor{id: id, jobType: t, constraints: cs, backoff: backoff, priority: priority}, nil
}

// NewSyncDescriptor builds the standard sync request: network required,
// exponential backoff starting at 30 seconds, expedited with a downgrade to
// standard priority when the expedited quota is exhausted.
func NewSyncDescriptor(jobType string) (Descriptor, error) {
	return Build(jobType,
		[]Constraint{ConstraintNetworkConnected},
		BackoffPolicy{Kind: BackoffExponential, InitialDelay: 30000, Unit: time.Millisecond},
		PriorityFallback{Expedited: true, Fallback: FallbackRunAsNonExpedited},
	)
}

func (d Descriptor) ID() string                 { return d.id }
func (d Descriptor) Type() Type                 { return d.jobType }
func (d Descriptor) Backoff() BackoffPolicy     { return d.backoff }
func (d Descriptor) Priority() PriorityFallback { return d.priority }

// Constraints returns a copy of the required constraints.
func (d Descriptor) Constraints() []Constraint {
	out := make([]Constraint, len(d.constraints))
	copy(out, d.constraints)
	return out
}

// Requires reports whether c is among the required constraints.
func (d Descriptor) Requires(c Constraint) bool {
	for _, have := range d.constraints {
		if have == c {
			return true
		}
	}
	return false
}

// IsZero reports whether d was never built.
func (d Descriptor) IsZero() bool { return d.id == "" }

type descriptorJSON struct {
	ID          string           `json:"id"`
	Type        Type             `json:"type"`
	Constraints []Constraint     `json:"constraints,omitempty"`
	Backoff     BackoffPolicy    `json:"backoff"`
	Priority    PriorityFallback `json:"priority"`
}

// MarshalJSON encodes the descriptor for use as a task payload.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		ID:          d.id,
		Type:        d.jobType,
		Constraints: d.constraints,
		Backoff:     d.backoff,
		Priority:    d.priority,
	})
}

// UnmarshalJSON decodes and re-validates a descriptor.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPolicy)
	}
	built, err := build(raw.ID, string(raw.Type), raw.Constraints, raw.Backoff, raw.Priority)
	if err != nil {
		return err
	}
	*d = built
	return nil
}
