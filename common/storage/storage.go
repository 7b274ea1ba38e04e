// Package storage abstracts the S3-compatible object store. The minio-backed
// implementation is used in production; the memory implementation backs tests.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/zeebo/errs"
)

// Error wraps backend I/O failures. These are retryable by the caller.
var Error = errs.Class("storage")

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errs.Class("object not found")

// CompletedPart describes one uploaded multipart part.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// ObjectInfo holds backend metadata for a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// PartURL is a presigned URL for uploading one part. Serialized as-is in the
// upload API response.
type PartURL struct {
	PartNumber int    `json:"part_number"`
	URL        string `json:"url"`
}

// Backend is the object store surface the registry needs. Objects written
// through Put are immutable; multipart uploads go through the Create /
// Presign / Complete / Abort cycle.
type Backend interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error

	CreateMultipartUpload(ctx context.Context, key string) (multipartID string, err error)
	PresignPartURL(ctx context.Context, key, multipartID string, partNumber int, expires time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, multipartID string, parts []CompletedPart) error
	// AbortMultipartUpload is idempotent: aborting an unknown upload is not
	// an error.
	AbortMultipartUpload(ctx context.Context, key, multipartID string) error
}
