package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

const uploadColumns = `upload_id, owner, filename, object_key, size_bytes, multipart_id, status, expiry, created_at, updated_at`

// UploadRepository handles database operations for uploads
type UploadRepository struct {
	q db.Querier
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(q db.Querier) *UploadRepository {
	return &UploadRepository{q: q}
}

// Create inserts a new upload record
func (r *UploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		upload.UploadID,
		upload.Owner,
		upload.Filename,
		upload.ObjectKey,
		upload.SizeBytes,
		upload.MultipartID,
		upload.Status,
		upload.Expiry,
		upload.CreatedAt,
		upload.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

// GetByID retrieves an upload by its id
func (r *UploadRepository) GetByID(ctx context.Context, uploadID uuid.UUID) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE upload_id = $1`

	upload := &models.Upload{}
	err := r.q.QueryRow(ctx, query, uploadID).Scan(
		&upload.UploadID,
		&upload.Owner,
		&upload.Filename,
		&upload.ObjectKey,
		&upload.SizeBytes,
		&upload.MultipartID,
		&upload.Status,
		&upload.Expiry,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	return upload, nil
}

// SetMultipartID records the backend multipart id and moves the upload to
// upload_created.
func (r *UploadRepository) SetMultipartID(ctx context.Context, uploadID uuid.UUID, multipartID string) error {
	query := `
		UPDATE uploads
		SET multipart_id = $2, status = $3, updated_at = now()
		WHERE upload_id = $1 AND status = $4
	`

	tag, err := r.q.Exec(ctx, query, uploadID, multipartID, models.UploadCreated, models.UploadInitial)
	if err != nil {
		return fmt.Errorf("failed to set multipart id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upload %s not in initial state", uploadID)
	}
	return nil
}

// TransitionStatus moves the upload from an expected state to the next one.
// Returns false when the row was not in the expected state, which signals a
// lost race or an invalid client call.
func (r *UploadRepository) TransitionStatus(ctx context.Context, uploadID uuid.UUID, from, to models.UploadStatus) (bool, error) {
	query := `
		UPDATE uploads
		SET status = $3, updated_at = now()
		WHERE upload_id = $1 AND status = $2
	`

	tag, err := r.q.Exec(ctx, query, uploadID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition upload status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetStatus forces the status without an optimistic check. Used by sweepers
// where the current state has already been inspected.
func (r *UploadRepository) SetStatus(ctx context.Context, uploadID uuid.UUID, to models.UploadStatus) error {
	query := `UPDATE uploads SET status = $2, updated_at = now() WHERE upload_id = $1`

	if _, err := r.q.Exec(ctx, query, uploadID, to); err != nil {
		return fmt.Errorf("failed to set upload status: %w", err)
	}
	return nil
}

// SetSize records the backend-reported size after finalize
func (r *UploadRepository) SetSize(ctx context.Context, uploadID uuid.UUID, size int64) error {
	query := `UPDATE uploads SET size_bytes = $2, updated_at = now() WHERE upload_id = $1`

	if _, err := r.q.Exec(ctx, query, uploadID, size); err != nil {
		return fmt.Errorf("failed to set upload size: %w", err)
	}
	return nil
}

// ListExpired returns uploads past their expiry that are not yet terminal
func (r *UploadRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Upload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM uploads
		WHERE expiry IS NOT NULL AND expiry <= $1 AND status IN ($2, $3)
		ORDER BY expiry
		LIMIT $4
	`

	rows, err := r.q.Query(ctx, query, now, models.UploadInitial, models.UploadCreated, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*models.Upload
	for rows.Next() {
		upload := &models.Upload{}
		err := rows.Scan(
			&upload.UploadID,
			&upload.Owner,
			&upload.Filename,
			&upload.ObjectKey,
			&upload.SizeBytes,
			&upload.MultipartID,
			&upload.Status,
			&upload.Expiry,
			&upload.CreatedAt,
			&upload.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired uploads: %w", err)
	}

	return uploads, nil
}
