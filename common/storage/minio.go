package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/thunderstore/registry/common/config"
)

// MinioBackend implements Backend against any S3-compatible store.
type MinioBackend struct {
	client *minio.Client
	core   *minio.Core
	bucket string
}

// NewMinioBackend connects to the configured S3 endpoint.
func NewMinioBackend(cfg *config.Config) (*MinioBackend, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.Storage.Region,
	}

	client, err := minio.New(cfg.Storage.Endpoint, opts)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	core, err := minio.NewCore(cfg.Storage.Endpoint, opts)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &MinioBackend{
		client: client,
		core:   core,
		bucket: cfg.Storage.Bucket,
	}, nil
}

func (b *MinioBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Error.Wrap(err)
	}
	return nil
}

func (b *MinioBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapMinioErr(err)
	}
	// GetObject is lazy; surface missing keys on first stat
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, wrapMinioErr(err)
	}
	return obj, nil
}

func (b *MinioBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, wrapMinioErr(err)
	}
	return ObjectInfo{Key: key, Size: info.Size}, nil
}

func (b *MinioBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return wrapMinioErr(err)
	}
	return nil
}

func (b *MinioBackend) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	uploadID, err := b.core.NewMultipartUpload(ctx, b.bucket, key, minio.PutObjectOptions{})
	if err != nil {
		return "", Error.Wrap(err)
	}
	return uploadID, nil
}

func (b *MinioBackend) PresignPartURL(ctx context.Context, key, multipartID string, partNumber int, expires time.Duration) (string, error) {
	params := url.Values{}
	params.Set("uploadId", multipartID)
	params.Set("partNumber", strconv.Itoa(partNumber))

	signed, err := b.client.Presign(ctx, http.MethodPut, b.bucket, key, expires, params)
	if err != nil {
		return "", Error.Wrap(err)
	}
	return signed.String(), nil
}

func (b *MinioBackend) CompleteMultipartUpload(ctx context.Context, key, multipartID string, parts []CompletedPart) error {
	sorted := make([]CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	completeParts := make([]minio.CompletePart, 0, len(sorted))
	for _, part := range sorted {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		})
	}

	_, err := b.core.CompleteMultipartUpload(ctx, b.bucket, key, multipartID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return Error.Wrap(err)
	}
	return nil
}

func (b *MinioBackend) AbortMultipartUpload(ctx context.Context, key, multipartID string) error {
	err := b.core.AbortMultipartUpload(ctx, b.bucket, key, multipartID)
	if err != nil {
		// Aborting an already-gone upload is fine
		if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
			return nil
		}
		return Error.Wrap(err)
	}
	return nil
}

func wrapMinioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound.Wrap(err)
	}
	return Error.Wrap(err)
}
