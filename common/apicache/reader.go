package apicache

import (
	"context"
	"io"
	"time"

	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
)

// Artifact is a servable cache artifact: gzipped bytes plus the metadata the
// HTTP handler needs for conditional responses.
type Artifact struct {
	Body         io.ReadCloser
	Size         int64
	LastModified time.Time
}

// Reader serves the latest cache artifact for a key.
type Reader struct {
	cacheBlobs *repository.CacheBlobRepository
	store      *blobstore.Store
	log        *logger.Logger
}

// NewReader creates a cache reader
func NewReader(cacheBlobs *repository.CacheBlobRepository, store *blobstore.Store, log *logger.Logger) *Reader {
	return &Reader{cacheBlobs: cacheBlobs, store: store, log: log}
}

// Serve returns the latest artifact for (community, kind). When
// ifModifiedSince is set and the artifact is not newer, notModified is true
// and no body is opened. A missing artifact surfaces as Unavailable so the
// handler can respond 503 with a retry hint.
func (r *Reader) Serve(ctx context.Context, community string, kind models.CacheKind, ifModifiedSince *time.Time) (artifact *Artifact, notModified bool, err error) {
	latest, err := r.cacheBlobs.GetLatest(ctx, community, kind)
	if err != nil {
		return nil, false, err
	}
	if latest == nil {
		return nil, false, apierrors.Unavailable.New("cache for %s/%s has not been built yet", community, kind)
	}

	// HTTP dates have second precision; truncate before comparing.
	if ifModifiedSince != nil && !latest.LastModified.Truncate(time.Second).After(*ifModifiedSince) {
		return &Artifact{LastModified: latest.LastModified}, true, nil
	}

	blob, body, err := r.store.Open(ctx, latest.BlobDigest)
	if err != nil {
		return nil, false, err
	}

	return &Artifact{
		Body:         body,
		Size:         blob.SizeBytes,
		LastModified: latest.LastModified,
	}, false, nil
}
