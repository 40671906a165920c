package staged

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"inventory-sync/core/bulk"
	"inventory-sync/core/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	payloadMimeType   = "text/jsonl"
	payloadHTTPMethod = "POST"
	payloadResource   = "BULK_MUTATION_VARIABLES"
)

var errIncompleteTarget = errors.New("incomplete upload target")

// Result describes a triggered write job and the payload it runs.
type Result struct {
	Job         bulk.Job
	Payload     []byte
	Filename    string
	ResourceKey string
	Units       int
}

// Pipeline serializes batch units, uploads them and starts the write job.
type Pipeline struct {
	api       API
	submitter Submitter
	opts      reconcile.PayloadOptions
	logger    *zap.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(api API, submitter Submitter, opts reconcile.PayloadOptions, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{api: api, submitter: submitter, opts: opts, logger: logger}
}

// Run executes the three stages in order and stops at the first failure.
// The returned Result is non-nil as soon as the payload is built, so callers can keep
// the payload even when a later stage fails.
func (p *Pipeline) Run(ctx context.Context, units []reconcile.BatchUnit) (*Result, error) {
	if len(units) == 0 {
		return nil, ErrEmptyBatch
	}

	var buf bytes.Buffer
	if err := reconcile.WritePayload(&buf, units, p.opts); err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	res := &Result{
		Payload:  buf.Bytes(),
		Filename: fmt.Sprintf("inventory-%s.jsonl", uuid.NewString()),
		Units:    len(units),
	}
	log := p.logger.With(zap.String("filename", res.Filename), zap.Int("units", res.Units))

	target, err := p.api.CreateStagedUpload(ctx, Request{
		Filename:   res.Filename,
		MimeType:   payloadMimeType,
		HTTPMethod: payloadHTTPMethod,
		Resource:   payloadResource,
	})
	if err != nil {
		return res, &UploadError{Stage: StageTarget, Err: err}
	}
	if target == nil || target.URL == "" || target.ResourceKey == "" {
		return res, &UploadError{Stage: StageTarget, Err: errIncompleteTarget}
	}
	res.ResourceKey = target.ResourceKey
	log.Debug("Staged upload target created", zap.String("resource_key", target.ResourceKey))

	if err := p.api.Upload(ctx, target, res.Filename, res.Payload); err != nil {
		return res, &UploadError{Stage: StageUpload, Err: err}
	}
	log.Debug("Payload uploaded", zap.Int("bytes", len(res.Payload)))

	job, err := p.submitter.Submit(ctx, bulk.Spec{
		Kind:            bulk.KindWrite,
		Mutation:        reconcile.SetQuantitiesMutation,
		StagedUploadKey: target.ResourceKey,
	})
	if err != nil {
		return res, &UploadError{Stage: StageTrigger, Err: err}
	}
	res.Job = job
	log.Info("Write job triggered", zap.String("job_id", job.ID))
	return res, nil
}
