package staged

import (
	"context"
	"errors"
	"fmt"

	"inventory-sync/core/bulk"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageTarget  Stage = "target"
	StageUpload  Stage = "upload"
	StageTrigger Stage = "trigger"
)

// ErrEmptyBatch is returned when there is nothing to upload.
var ErrEmptyBatch = errors.New("no batch units to upload")

// UploadError reports which stage of the pipeline failed.
type UploadError struct {
	Stage Stage
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("staged upload failed at %s stage: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Parameter is one form field the upload target requires.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Target is a write target returned by the remote system.
type Target struct {
	URL string
	// ResourceKey is the storage key of the object once uploaded.
	ResourceKey string
	Parameters  []Parameter
}

// Request describes the file a target is requested for.
type Request struct {
	Filename   string
	MimeType   string
	HTTPMethod string
	Resource   string
}

// API is the remote surface of the staged upload protocol.
type API interface {
	// CreateStagedUpload requests a write target for one file.
	CreateStagedUpload(ctx context.Context, req Request) (*Target, error)

	// Upload posts payload to the target as a multipart form.
	Upload(ctx context.Context, target *Target, filename string, payload []byte) error
}

// Submitter triggers bulk jobs. *bulk.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, spec bulk.Spec) (bulk.Job, error)
}
