package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client submits, polls and cancels bulk jobs and owns the single job slot.
//
// The mutex only guards the slot itself. Callers are still responsible for making sure
// at most one Submit is in flight.
type Client struct {
	api      API
	clock    Clock
	settle   time.Duration
	recorder Recorder
	logger   *zap.Logger

	mu   sync.Mutex
	slot *Job
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the real clock.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRecorder persists every observed transition.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a job client over the given API.
func NewClient(api API, cfg Config, opts ...Option) *Client {
	c := &Client{
		api:    api,
		clock:  RealClock(),
		settle: cfg.CancelSettle(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clock returns the clock used by the client.
func (c *Client) Clock() Clock {
	return c.clock
}

// Active returns the job occupying the slot, if it is still non-terminal.
func (c *Client) Active() (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot == nil || !c.slot.Active() {
		return Job{}, false
	}
	return *c.slot, true
}

// Restore places a previously persisted job into the slot.
// It is used at startup so a job submitted by an earlier process still blocks new submissions.
func (c *Client) Restore(job Job) {
	if !job.Active() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	j := job
	c.slot = &j
}

// Submit starts a new job. It fails with a ConflictError while the slot holds an active job.
//
// If the remote system reports that a job is already in progress, the blocking job is
// cancelled and the submission is retried exactly once.
func (c *Client) Submit(ctx context.Context, spec Spec) (Job, error) {
	if active, ok := c.Active(); ok {
		return Job{}, &ConflictError{Active: active}
	}

	sub, err := c.api.Submit(ctx, spec)
	if err != nil {
		return Job{}, fmt.Errorf("submit %s job: %w", spec.Kind, err)
	}

	if inProgress(sub.UserErrors) {
		c.logger.Warn("Remote reports a bulk job in progress, cancelling it and retrying once",
			zap.String("kind", string(spec.Kind)))
		if err := c.cancelBlocking(ctx, spec.Kind); err != nil {
			return Job{}, err
		}
		sub, err = c.api.Submit(ctx, spec)
		if err != nil {
			return Job{}, fmt.Errorf("resubmit %s job: %w", spec.Kind, err)
		}
	}

	if len(sub.UserErrors) > 0 {
		return Job{}, &SubmitError{UserErrors: sub.UserErrors}
	}
	if sub.Job == nil || sub.Job.ID == "" {
		return Job{}, errors.New("submit returned no job")
	}

	now := c.clock.Now()
	job := Job{
		ID:          sub.Job.ID,
		Kind:        spec.Kind,
		Status:      StatusCreated,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	job.apply(sub.Job, now)

	c.mu.Lock()
	c.slot = &job
	c.mu.Unlock()

	c.logger.Info("Bulk job submitted",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(job.Status)),
	)
	c.record(ctx, job)
	return job, nil
}

// Poll fetches the current status of job and returns the updated handle.
// Polling a terminal job returns it unchanged without contacting the remote system.
func (c *Client) Poll(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		return job, ErrNoJob
	}
	if job.Status.Terminal() {
		return job, nil
	}

	snap, err := c.api.Status(ctx, job.ID)
	if err != nil {
		return job, fmt.Errorf("poll job %s: %w", job.ID, err)
	}
	if snap == nil {
		return job, fmt.Errorf("poll job %s: %w", job.ID, ErrJobNotFound)
	}

	next := job
	if next.apply(snap, c.clock.Now()) {
		c.logger.Debug("Bulk job transition",
			zap.String("job_id", next.ID),
			zap.String("from", string(job.Status)),
			zap.String("to", string(next.Status)),
			zap.Int64("objects", next.ObjectCount),
		)
		c.record(ctx, next)
	}
	c.updateSlot(next)
	return next, nil
}

// Cancel requests cancellation of job, then waits the settle delay and releases the slot.
// Cancellation is best-effort: a failed request is logged, and the remote system may keep
// reporting the job as running for a while. Its final status is still observed through Poll.
func (c *Client) Cancel(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		return job, ErrNoJob
	}
	if job.Status.Terminal() {
		c.release(job.ID)
		return job, nil
	}

	next := job
	snap, err := c.api.Cancel(ctx, job.ID)
	if err != nil {
		c.logger.Warn("Cancel request failed", zap.String("job_id", job.ID), zap.Error(err))
	} else if next.apply(snap, c.clock.Now()) {
		c.record(ctx, next)
	}
	c.updateSlot(next)

	if err := sleep(ctx, c.clock, c.settle); err != nil {
		return next, err
	}
	c.release(job.ID)
	c.logger.Info("Bulk job cancellation requested", zap.String("job_id", job.ID), zap.String("status", string(next.Status)))
	return next, nil
}

// cancelBlocking cancels whatever job of the given kind the remote system is running.
func (c *Client) cancelBlocking(ctx context.Context, kind Kind) error {
	current, err := c.api.Current(ctx, kind)
	if err != nil {
		return fmt.Errorf("find in-progress %s job: %w", kind, err)
	}
	if current == nil || current.ID == "" || current.Status.Terminal() {
		return nil
	}
	if _, err := c.api.Cancel(ctx, current.ID); err != nil {
		c.logger.Warn("Cancel of blocking job failed", zap.String("job_id", current.ID), zap.Error(err))
	}
	return sleep(ctx, c.clock, c.settle)
}

func (c *Client) updateSlot(job Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot != nil && c.slot.ID == job.ID {
		j := job
		c.slot = &j
	}
}

func (c *Client) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot != nil && c.slot.ID == id {
		c.slot = nil
	}
}

func (c *Client) record(ctx context.Context, job Job) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordJob(ctx, job); err != nil {
		c.logger.Warn("Failed to record bulk job", zap.String("job_id", job.ID), zap.Error(err))
	}
}
