package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the async submission state machine.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionFinished   SubmissionStatus = "finished"
	SubmissionFormErrors SubmissionStatus = "form_errors"
	SubmissionTaskError  SubmissionStatus = "task_error"
)

// Terminal reports whether the submission can no longer transition.
// form_errors is not terminal: reprocessing is allowed and deterministic.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionFinished
}

// SubmissionMetadata is the caller-provided form data of a submission.
type SubmissionMetadata struct {
	AuthorName     string              `json:"author_name"`
	Communities    []string            `json:"communities"`
	Categories     map[string][]string `json:"community_categories,omitempty"`
	HasNsfwContent bool                `json:"has_nsfw_content"`
}

// AsyncSubmission records one asynchronous attempt to turn an upload plus
// metadata into a package version.
// Maps to: submissions table
type AsyncSubmission struct {
	// TaskTTL is how long a scheduled task may stay unfinished before a
	// poll may reschedule it.
	// CleanupTTL is how long finished or unpolled submissions are kept.

	SubmissionID uuid.UUID `db:"submission_id" json:"id"`
	Owner        string    `db:"owner" json:"owner"`
	UploadID     uuid.UUID `db:"upload_id" json:"upload_id"`

	Status SubmissionStatus `db:"status" json:"status"`

	FormData   SubmissionMetadata  `db:"form_data" json:"form_data"`
	FormErrors map[string][]string `db:"form_errors" json:"form_errors,omitempty"`
	TaskError  *string             `db:"task_error" json:"task_error,omitempty"`

	RetryCount       int        `db:"retry_count" json:"-"`
	CreatedVersionID *uuid.UUID `db:"created_version_id" json:"created_version_id,omitempty"`

	DatetimeScheduled *time.Time `db:"datetime_scheduled" json:"-"`
	DatetimePolled    time.Time  `db:"datetime_polled" json:"-"`
	DatetimeFinished  *time.Time `db:"datetime_finished" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	// SubmissionTaskTTL bounds how often polling may reschedule a pending
	// submission.
	SubmissionTaskTTL = 5 * time.Minute
	// SubmissionCleanupTTL bounds how long records are retained.
	SubmissionCleanupTTL = 24 * time.Hour
)

// ScheduleExpired reports whether a previous schedule is old enough that the
// submission may be enqueued again.
func (s *AsyncSubmission) ScheduleExpired(now time.Time) bool {
	if s.DatetimeScheduled == nil {
		return true
	}
	return now.Sub(*s.DatetimeScheduled) > SubmissionTaskTTL
}
