package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

const submissionColumns = `
	submission_id, owner, upload_id, status, form_data, form_errors,
	task_error, retry_count, created_version_id, datetime_scheduled,
	datetime_polled, datetime_finished, created_at
`

// SubmissionRepository handles database operations for async submissions
type SubmissionRepository struct {
	q db.Querier
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(q db.Querier) *SubmissionRepository {
	return &SubmissionRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *SubmissionRepository) WithTx(tx pgx.Tx) *SubmissionRepository {
	return &SubmissionRepository{q: tx}
}

func scanSubmission(row pgx.Row) (*models.AsyncSubmission, error) {
	s := &models.AsyncSubmission{}
	var formData []byte
	var formErrors []byte

	err := row.Scan(
		&s.SubmissionID,
		&s.Owner,
		&s.UploadID,
		&s.Status,
		&formData,
		&formErrors,
		&s.TaskError,
		&s.RetryCount,
		&s.CreatedVersionID,
		&s.DatetimeScheduled,
		&s.DatetimePolled,
		&s.DatetimeFinished,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(formData, &s.FormData); err != nil {
		return nil, fmt.Errorf("failed to decode form data: %w", err)
	}
	if len(formErrors) > 0 {
		if err := json.Unmarshal(formErrors, &s.FormErrors); err != nil {
			return nil, fmt.Errorf("failed to decode form errors: %w", err)
		}
	}
	return s, nil
}

// Create inserts a new submission record
func (r *SubmissionRepository) Create(ctx context.Context, s *models.AsyncSubmission) error {
	formData, err := json.Marshal(s.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode form data: %w", err)
	}

	query := `
		INSERT INTO submissions (submission_id, owner, upload_id, status,
			form_data, retry_count, datetime_polled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.q.Exec(ctx, query,
		s.SubmissionID,
		s.Owner,
		s.UploadID,
		s.Status,
		formData,
		s.RetryCount,
		s.DatetimePolled,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by id
func (r *SubmissionRepository) GetByID(ctx context.Context, submissionID uuid.UUID) (*models.AsyncSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_id = $1`

	s, err := scanSubmission(r.q.QueryRow(ctx, query, submissionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// TouchPolled records a poll against the submission
func (r *SubmissionRepository) TouchPolled(ctx context.Context, submissionID uuid.UUID, at time.Time) error {
	query := `UPDATE submissions SET datetime_polled = $2 WHERE submission_id = $1`

	if _, err := r.q.Exec(ctx, query, submissionID, at); err != nil {
		return fmt.Errorf("failed to touch submission: %w", err)
	}
	return nil
}

// SetScheduled records that a processing task was enqueued
func (r *SubmissionRepository) SetScheduled(ctx context.Context, submissionID uuid.UUID, at time.Time) error {
	query := `UPDATE submissions SET datetime_scheduled = $2 WHERE submission_id = $1`

	if _, err := r.q.Exec(ctx, query, submissionID, at); err != nil {
		return fmt.Errorf("failed to set submission schedule: %w", err)
	}
	return nil
}

// AcquireForProcessing claims a non-terminal submission inside tx using
// SKIP LOCKED so concurrent workers never block on the same row. Returns nil
// when the row is absent, terminal, or held by another worker.
func (r *SubmissionRepository) AcquireForProcessing(ctx context.Context, tx pgx.Tx, submissionID uuid.UUID) (*models.AsyncSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE submission_id = $1 AND status != $2
		FOR UPDATE SKIP LOCKED
	`

	s, err := scanSubmission(tx.QueryRow(ctx, query, submissionID, models.SubmissionFinished))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submission: %w", err)
	}

	markQuery := `UPDATE submissions SET status = $2 WHERE submission_id = $1`
	if _, err := tx.Exec(ctx, markQuery, submissionID, models.SubmissionInProgress); err != nil {
		return nil, fmt.Errorf("failed to mark submission in progress: %w", err)
	}
	s.Status = models.SubmissionInProgress
	return s, nil
}

// MarkFinished records successful completion
func (r *SubmissionRepository) MarkFinished(ctx context.Context, submissionID, versionID uuid.UUID) error {
	query := `
		UPDATE submissions
		SET status = $2, created_version_id = $3, form_errors = NULL,
			task_error = NULL, datetime_finished = now()
		WHERE submission_id = $1
	`

	if _, err := r.q.Exec(ctx, query, submissionID, models.SubmissionFinished, versionID); err != nil {
		return fmt.Errorf("failed to mark submission finished: %w", err)
	}
	return nil
}

// MarkFormErrors records validation failure with the per-field errors
func (r *SubmissionRepository) MarkFormErrors(ctx context.Context, submissionID uuid.UUID, fieldErrors map[string][]string) error {
	encoded, err := json.Marshal(fieldErrors)
	if err != nil {
		return fmt.Errorf("failed to encode form errors: %w", err)
	}

	query := `
		UPDATE submissions
		SET status = $2, form_errors = $3, datetime_finished = now()
		WHERE submission_id = $1
	`

	if _, err := r.q.Exec(ctx, query, submissionID, models.SubmissionFormErrors, encoded); err != nil {
		return fmt.Errorf("failed to mark submission form errors: %w", err)
	}
	return nil
}

// MarkTaskError records an infrastructure failure and bumps the retry counter
func (r *SubmissionRepository) MarkTaskError(ctx context.Context, submissionID uuid.UUID, message string) error {
	query := `
		UPDATE submissions
		SET status = $2, task_error = $3, retry_count = retry_count + 1
		WHERE submission_id = $1
	`

	if _, err := r.q.Exec(ctx, query, submissionID, models.SubmissionTaskError, message); err != nil {
		return fmt.Errorf("failed to mark submission task error: %w", err)
	}
	return nil
}

// DeleteOld removes submissions finished or last polled before cutoff and
// returns how many rows were removed.
func (r *SubmissionRepository) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM submissions
		WHERE (datetime_finished IS NOT NULL AND datetime_finished < $1)
			OR (datetime_finished IS NULL AND datetime_polled < $1)
	`

	tag, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old submissions: %w", err)
	}
	return tag.RowsAffected(), nil
}
