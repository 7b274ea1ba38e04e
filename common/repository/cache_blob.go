package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

// CacheBlobRepository handles database operations for derived cache artifacts
type CacheBlobRepository struct {
	q db.Querier
}

// NewCacheBlobRepository creates a new cache blob repository
func NewCacheBlobRepository(q db.Querier) *CacheBlobRepository {
	return &CacheBlobRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *CacheBlobRepository) WithTx(tx pgx.Tx) *CacheBlobRepository {
	return &CacheBlobRepository{q: tx}
}

// Insert records a freshly rendered cache artifact
func (r *CacheBlobRepository) Insert(ctx context.Context, cb *models.CacheBlob) error {
	query := `
		INSERT INTO cache_blobs (cache_id, community, kind, blob_digest, last_modified)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query, cb.CacheID, cb.Community, cb.Kind, cb.BlobDigest, cb.LastModified)
	if err != nil {
		return fmt.Errorf("failed to insert cache blob: %w", err)
	}
	return nil
}

// GetLatest returns the newest artifact for (community, kind), or nil when
// none has been built yet.
func (r *CacheBlobRepository) GetLatest(ctx context.Context, community string, kind models.CacheKind) (*models.CacheBlob, error) {
	query := `
		SELECT cache_id, community, kind, blob_digest, last_modified
		FROM cache_blobs
		WHERE community = $1 AND kind = $2
		ORDER BY last_modified DESC
		LIMIT 1
	`

	cb := &models.CacheBlob{}
	err := r.q.QueryRow(ctx, query, community, kind).Scan(
		&cb.CacheID,
		&cb.Community,
		&cb.Kind,
		&cb.BlobDigest,
		&cb.LastModified,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cache blob: %w", err)
	}
	return cb, nil
}

// IsDigestReferenced reports whether any cache row still points at digest.
// Unchanged content produces the same blob across rebuilds, so a digest may
// outlive the rows that first referenced it.
func (r *CacheBlobRepository) IsDigestReferenced(ctx context.Context, digest string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM cache_blobs WHERE blob_digest = $1)`

	var referenced bool
	if err := r.q.QueryRow(ctx, query, digest).Scan(&referenced); err != nil {
		return false, fmt.Errorf("failed to check cache digest references: %w", err)
	}
	return referenced, nil
}

// DeleteSuperseded removes artifacts of (community, kind) older than cutoff,
// keeping the newest row regardless of age. Returns the digests of the
// removed rows so the caller can tombstone blobs no longer referenced.
func (r *CacheBlobRepository) DeleteSuperseded(ctx context.Context, community string, kind models.CacheKind, cutoff time.Time) ([]string, error) {
	query := `
		DELETE FROM cache_blobs
		WHERE community = $1 AND kind = $2 AND last_modified < $3
			AND cache_id != (
				SELECT cache_id FROM cache_blobs
				WHERE community = $1 AND kind = $2
				ORDER BY last_modified DESC
				LIMIT 1
			)
		RETURNING blob_digest
	`

	rows, err := r.q.Query(ctx, query, community, kind, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete superseded cache blobs: %w", err)
	}
	defer rows.Close()

	var digests []string
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("failed to scan cache blob digest: %w", err)
		}
		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache blob digests: %w", err)
	}
	return digests, nil
}
