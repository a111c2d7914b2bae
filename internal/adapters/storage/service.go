// Package storage provides a thin adapter over S3-compatible object
// storage, used to archive raw call gateway payloads for audit.
package storage

import (
	"context"
	"io"
)

// StorageService defines the interface for object storage operations.
type StorageService interface {
	// PutObject stores an object under the given key.
	PutObject(ctx context.Context, bucket, key, contentType string, payload []byte) error

	// GetObject retrieves an object. The caller is responsible for
	// closing the returned io.ReadCloser.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
