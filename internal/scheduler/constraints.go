package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"syncworker/internal/job"
)

// ErrConstraintsUnmet defers an attempt until its constraints hold. It is
// never the result of an attempt; the executor does not run.
var ErrConstraintsUnmet = errors.New("job constraints not satisfied")

// ConstraintChecker reports whether a constraint currently holds.
type ConstraintChecker interface {
	Satisfied(ctx context.Context, c job.Constraint) (bool, error)
}

// NetworkChecker treats the network as connected when a TCP connection to
// Address can be opened within Timeout.
type NetworkChecker struct {
	Address string
	Timeout time.Duration

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewNetworkChecker(address string, timeout time.Duration) *NetworkChecker {
	d := &net.Dialer{Timeout: timeout}
	return &NetworkChecker{Address: address, Timeout: timeout, dial: d.DialContext}
}

func (n *NetworkChecker) Satisfied(ctx context.Context, c job.Constraint) (bool, error) {
	if c != job.ConstraintNetworkConnected {
		return false, fmt.Errorf("network checker cannot evaluate %q", c)
	}
	conn, err := n.dial(ctx, "tcp", n.Address)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

// checkConstraints returns ErrConstraintsUnmet (wrapped) for the first
// constraint of d that does not hold.
func checkConstraints(ctx context.Context, checker ConstraintChecker, d job.Descriptor) error {
	for _, c := range d.Constraints() {
		if checker == nil {
			return fmt.Errorf("%w: no checker for %s", ErrConstraintsUnmet, c)
		}
		ok, err := checker.Satisfied(ctx, c)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConstraintsUnmet, c, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrConstraintsUnmet, c)
		}
	}
	return nil
}
