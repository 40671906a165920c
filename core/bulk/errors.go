package bulk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJob is returned when an operation needs a job but none is tracked.
	ErrNoJob = errors.New("no bulk job")

	// ErrJobNotFound is returned when the remote system no longer knows a job.
	ErrJobNotFound = errors.New("bulk job not found")
)

// ConflictError is returned when a submission collides with the active job.
type ConflictError struct {
	Active Job
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bulk job %s is still %s", e.Active.ID, strings.ToLower(string(e.Active.Status)))
}

// SubmitError carries the user errors of a refused submission.
type SubmitError struct {
	UserErrors []UserError
}

func (e *SubmitError) Error() string {
	msgs := make([]string, 0, len(e.UserErrors))
	for _, ue := range e.UserErrors {
		msgs = append(msgs, ue.Message)
	}
	return "bulk job rejected: " + strings.Join(msgs, "; ")
}

// JobFailure is returned when a job ends FAILED or CANCELED.
type JobFailure struct {
	Job Job
}

func (e *JobFailure) Error() string {
	if e.Job.ErrorCode != "" {
		return fmt.Sprintf("bulk job %s %s: %s", e.Job.ID, strings.ToLower(string(e.Job.Status)), e.Job.ErrorCode)
	}
	return fmt.Sprintf("bulk job %s %s", e.Job.ID, strings.ToLower(string(e.Job.Status)))
}
