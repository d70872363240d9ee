package config

import (
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

/*
Validate checks every section the worker, submitter and API server rely on.
Backend settings are only required by the worker and are checked separately
by ValidateWorker.
*/

func (c *Config) Validate() error {
	// Redis config
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	// Scheduler config
	if c.Scheduler.ExpeditedQueue == "" || c.Scheduler.DefaultQueue == "" {
		return errors.New("scheduler.expedited_queue and scheduler.default_queue are required")
	}
	if c.Scheduler.ExpeditedQueue == c.Scheduler.DefaultQueue {
		return errors.New("scheduler.expedited_queue must differ from scheduler.default_queue")
	}
	if c.Scheduler.MaxRetry < 0 {
		return errors.New("scheduler.max_retry must not be negative")
	}
	if c.Scheduler.BackoffFloor < 0 || c.Scheduler.BackoffCeiling < 0 {
		return errors.New("scheduler backoff bounds must not be negative")
	}
	if c.Scheduler.BackoffCeiling > 0 && c.Scheduler.BackoffFloor > c.Scheduler.BackoffCeiling {
		return fmt.Errorf("scheduler.backoff_floor (%s) exceeds scheduler.backoff_ceiling (%s)", c.Scheduler.BackoffFloor, c.Scheduler.BackoffCeiling)
	}
	if c.Scheduler.ConstraintPoll <= 0 {
		return errors.New("scheduler.constraint_poll must be positive")
	}
	if c.Scheduler.ExpeditedRate < 0 || c.Scheduler.ExpeditedBurst < 0 {
		return errors.New("scheduler expedited quota must not be negative")
	}

	// Log config
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateWorker adds the checks that only matter to worker processes.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	for _, q := range []string{c.Scheduler.ExpeditedQueue, c.Scheduler.DefaultQueue} {
		if _, ok := c.Worker.Queues[q]; !ok {
			return fmt.Errorf("worker.queues does not include scheduler queue '%s'", q)
		}
	}

	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, _, err := net.SplitHostPort(c.Constraints.NetworkProbe); err != nil {
		return fmt.Errorf("constraints.network_probe: %w", err)
	}
	return nil
}
