package bulk

import "time"

// Kind distinguishes read (export) jobs from write (mutation) jobs.
type Kind string

const (
	// KindRead is a bulk query job.
	KindRead Kind = "READ"
	// KindWrite is a bulk mutation job.
	KindWrite Kind = "WRITE"
)

// Status is the lifecycle state of a remote job.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// canTransition reports whether an observed status may replace the current one.
func canTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusCreated:
		return to == StatusRunning || to.Terminal()
	case StatusRunning:
		return to.Terminal()
	default:
		// Unknown local state (e.g. restored from an older ledger): accept anything valid.
		return true
	}
}

// Job is a local snapshot of one remote asynchronous job.
type Job struct {
	// ID is the remote identifier of the job.
	ID string `json:"id"`

	// Kind is the job type (read or write).
	Kind Kind `json:"kind"`

	// Status is the last status observed through polling.
	Status Status `json:"status"`

	// ObjectCount is the number of objects processed so far, as reported remotely.
	ObjectCount int64 `json:"object_count"`

	// ResultURL points to the newline-delimited result artifact once COMPLETED.
	ResultURL string `json:"result_url,omitempty"`

	// ErrorCode is the remote error code for failed jobs.
	ErrorCode string `json:"error_code,omitempty"`

	// SubmittedAt is when the job was accepted by the remote system.
	SubmittedAt time.Time `json:"submitted_at"`

	// UpdatedAt is when the last transition was observed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job still occupies the slot.
func (j Job) Active() bool {
	return j.ID != "" && !j.Status.Terminal()
}

// apply merges a remote snapshot into the job. It returns true if anything changed.
// Snapshots that would move the job backwards or out of a terminal state are ignored.
func (j *Job) apply(s *Snapshot, now time.Time) bool {
	if s == nil || !canTransition(j.Status, s.Status) {
		return false
	}
	changed := j.Status != s.Status ||
		j.ObjectCount != s.ObjectCount ||
		j.ResultURL != s.ResultURL ||
		j.ErrorCode != s.ErrorCode
	if !changed {
		return false
	}
	j.Status = s.Status
	j.ObjectCount = s.ObjectCount
	j.ResultURL = s.ResultURL
	j.ErrorCode = s.ErrorCode
	j.UpdatedAt = now
	return true
}
