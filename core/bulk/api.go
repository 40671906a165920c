package bulk

import (
	"context"
	"strings"
)

// Spec describes a job to submit.
type Spec struct {
	// Kind selects between a bulk query and a bulk mutation.
	Kind Kind

	// Query is the bulk query document for read jobs.
	Query string

	// Mutation is the mutation template for write jobs.
	Mutation string

	// StagedUploadKey references the uploaded variables file for write jobs.
	StagedUploadKey string
}

// Snapshot is the remote view of a job as returned by one API call.
type Snapshot struct {
	ID          string
	Status      Status
	ObjectCount int64
	ResultURL   string
	ErrorCode   string
}

// UserError is a validation error returned by the remote system on submission.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// Submission is the outcome of a submit call: either a job or user errors.
type Submission struct {
	Job        *Snapshot
	UserErrors []UserError
}

// API is the remote surface needed to run bulk jobs.
type API interface {
	// Submit starts a new job.
	Submit(ctx context.Context, spec Spec) (*Submission, error)

	// Status fetches the current status of a job. It returns nil if the job is unknown.
	Status(ctx context.Context, id string) (*Snapshot, error)

	// Cancel requests cancellation of a job. The returned snapshot may still be transitioning.
	Cancel(ctx context.Context, id string) (*Snapshot, error)

	// Current returns the job of the given kind currently running remotely, or nil.
	Current(ctx context.Context, kind Kind) (*Snapshot, error)
}

// Recorder persists observed job transitions.
type Recorder interface {
	RecordJob(ctx context.Context, job Job) error
}

// inProgress reports whether the remote system refused a submission because another
// job of the same kind is still running.
func inProgress(errs []UserError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "already in progress") {
			return true
		}
	}
	return false
}
