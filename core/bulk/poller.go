package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is the decision taken after one poll.
type Step int

const (
	// StepReschedule means the job is not terminal yet (or the poll failed transiently).
	StepReschedule Step = iota
	// StepDone means the loop must stop.
	StepDone
)

// Poller drives a job to a terminal state, one poll per interval.
type Poller struct {
	client    *Client
	clock     Clock
	interval  time.Duration
	maxErrors int
	logger    *zap.Logger
}

// NewPoller creates a poller sharing the client's clock and logger.
func NewPoller(client *Client, cfg Config) *Poller {
	return &Poller{
		client:    client,
		clock:     client.clock,
		interval:  cfg.PollInterval(),
		maxErrors: cfg.PollErrorBudget(),
		logger:    client.logger,
	}
}

// Step polls once and decides whether to reschedule.
// A failed poll reschedules; only a job the remote system no longer knows ends the loop.
func (p *Poller) Step(ctx context.Context, job Job) (Job, Step, error) {
	next, err := p.client.Poll(ctx, job)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrNoJob) {
			return job, StepDone, err
		}
		return job, StepReschedule, err
	}
	if next.Status.Terminal() {
		return next, StepDone, nil
	}
	return next, StepReschedule, nil
}

// Wait polls job until it is terminal. onComplete runs exactly once when the job
// reaches COMPLETED; FAILED and CANCELED end with a JobFailure.
func (p *Poller) Wait(ctx context.Context, job Job, onComplete func(context.Context, Job) error) (Job, error) {
	failures := 0
	for {
		next, step, err := p.Step(ctx, job)
		job = next

		if err != nil {
			if step == StepDone {
				return job, err
			}
			failures++
			p.logger.Warn("Bulk job poll failed",
				zap.String("job_id", job.ID),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
			if failures >= p.maxErrors {
				return job, fmt.Errorf("giving up on job %s after %d failed polls: %w", job.ID, failures, err)
			}
		} else {
			failures = 0
		}

		if step == StepDone {
			if job.Status != StatusCompleted {
				return job, &JobFailure{Job: job}
			}
			p.logger.Info("Bulk job completed",
				zap.String("job_id", job.ID),
				zap.Int64("objects", job.ObjectCount),
			)
			if onComplete == nil {
				return job, nil
			}
			return job, onComplete(ctx, job)
		}

		if err := sleep(ctx, p.clock, p.interval); err != nil {
			return job, err
		}
	}
}
