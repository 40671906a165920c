// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so the artifact archive
// can be exercised against a testify mock (see core/storage/mocks). Both AWS S3 and
// self-hosted MinIO endpoints are supported.
//
// # Operations
//
//   - BucketExists / MakeBucket: bucket bootstrap, combined in EnsureBucket.
//   - PutObject: uploads an artifact with a known size.
//   - GetObject: retrieves an artifact as a stream.
//   - ListObjects: lists artifacts under a prefix.
//   - RemoveObjects: bulk deletion, used when a run's artifacts are purged.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	err = storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region)
package storage
