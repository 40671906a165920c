package inventory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"inventory-sync/core/storage"

	"github.com/minio/minio-go/v7"
)

// Artifact names stored per run.
const (
	ArtifactExport  = "export.csv"
	ArtifactInput   = "input.csv"
	ArtifactPayload = "payload.jsonl"
	ArtifactResult  = "result.jsonl"
	ArtifactReport  = "report.json"
)

// Archive stores run artifacts under <prefix>/<run id>/ in one bucket.
type Archive struct {
	client storage.Client
	bucket string
	prefix string
}

// NewArchive creates an archive.
func NewArchive(client storage.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix}
}

// Bucket returns the archive bucket.
func (a *Archive) Bucket() string {
	return a.bucket
}

// Key returns the object key of a run artifact.
func (a *Archive) Key(runID, name string) string {
	return path.Join(a.prefix, runID, name)
}

// Put stores data as the named artifact of a run and returns its key.
func (a *Archive) Put(ctx context.Context, runID, name string, data []byte, contentType string) (string, error) {
	key := a.Key(runID, name)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return key, nil
}

// Open streams an object from the archive bucket. The caller closes the reader.
func (a *Archive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return obj, nil
}

// List returns the artifact keys of a run.
func (a *Archive) List(ctx context.Context, runID string) ([]string, error) {
	var keys []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    a.Key(runID, "") + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list artifacts of run %s: %w", runID, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Purge deletes every artifact of a run and returns how many were removed.
func (a *Archive) Purge(ctx context.Context, runID string) (int, error) {
	keys, err := a.List(ctx, runID)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objectsCh <- minio.ObjectInfo{Key: k}
	}
	close(objectsCh)

	failed := 0
	var firstErr error
	for rErr := range a.client.RemoveObjects(ctx, a.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = rErr.Err
		}
	}
	if firstErr != nil {
		return len(keys) - failed, fmt.Errorf("failed to delete %d artifacts of run %s: %w", failed, runID, firstErr)
	}
	return len(keys), nil
}
