package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

// BlobRepository handles database operations for blob metadata
type BlobRepository struct {
	q db.Querier
}

// NewBlobRepository creates a new blob repository
func NewBlobRepository(q db.Querier) *BlobRepository {
	return &BlobRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *BlobRepository) WithTx(tx pgx.Tx) *BlobRepository {
	return &BlobRepository{q: tx}
}

// Create inserts a blob row; concurrent inserts of the same digest converge
// on the existing row.
func (r *BlobRepository) Create(ctx context.Context, blob *models.Blob) (created bool, err error) {
	query := `
		INSERT INTO blobs (digest, size_bytes, content_type, content_encoding, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (digest) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query,
		blob.Digest,
		blob.SizeBytes,
		blob.ContentType,
		blob.ContentEncoding,
		blob.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create blob: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByDigest retrieves a blob by its digest
func (r *BlobRepository) GetByDigest(ctx context.Context, digest string) (*models.Blob, error) {
	query := `
		SELECT digest, size_bytes, content_type, content_encoding, is_deleted, created_at
		FROM blobs
		WHERE digest = $1
	`

	blob := &models.Blob{}
	err := r.q.QueryRow(ctx, query, digest).Scan(
		&blob.Digest,
		&blob.SizeBytes,
		&blob.ContentType,
		&blob.ContentEncoding,
		&blob.IsDeleted,
		&blob.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}

	return blob, nil
}

// Restore clears the tombstone bit after the object bytes were re-stored
func (r *BlobRepository) Restore(ctx context.Context, digest string) error {
	query := `UPDATE blobs SET is_deleted = FALSE WHERE digest = $1`

	if _, err := r.q.Exec(ctx, query, digest); err != nil {
		return fmt.Errorf("failed to restore blob: %w", err)
	}
	return nil
}

// MarkDeleted flips the tombstone bit
func (r *BlobRepository) MarkDeleted(ctx context.Context, digest string) error {
	query := `UPDATE blobs SET is_deleted = TRUE WHERE digest = $1`

	if _, err := r.q.Exec(ctx, query, digest); err != nil {
		return fmt.Errorf("failed to tombstone blob: %w", err)
	}
	return nil
}

// ListTombstoned returns digests whose backend erase may still be pending
func (r *BlobRepository) ListTombstoned(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT digest FROM blobs WHERE is_deleted ORDER BY created_at LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstoned blobs: %w", err)
	}
	defer rows.Close()

	var digests []string
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("failed to scan blob digest: %w", err)
		}
		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tombstoned blobs: %w", err)
	}

	return digests, nil
}

// Erase removes the tombstoned metadata row after the backend object is gone
func (r *BlobRepository) Erase(ctx context.Context, digest string) error {
	query := `DELETE FROM blobs WHERE digest = $1 AND is_deleted`

	if _, err := r.q.Exec(ctx, query, digest); err != nil {
		return fmt.Errorf("failed to erase blob row: %w", err)
	}
	return nil
}
