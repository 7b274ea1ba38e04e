package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus is the multipart upload lifecycle state.
type UploadStatus string

const (
	UploadInitial  UploadStatus = "initial"
	UploadCreated  UploadStatus = "upload_created"
	UploadComplete UploadStatus = "upload_complete"
	UploadError    UploadStatus = "upload_error"
	UploadAborted  UploadStatus = "upload_aborted"
)

// Terminal reports whether no further transitions are allowed.
func (s UploadStatus) Terminal() bool {
	switch s {
	case UploadComplete, UploadError, UploadAborted:
		return true
	}
	return false
}

// Upload is an in-progress multipart transfer from a client to the object
// store.
// Maps to: uploads table
type Upload struct {
	// UUIDv7: lexicographically sortable by creation time
	UploadID uuid.UUID `db:"upload_id" json:"upload_id"`

	Owner string `db:"owner" json:"owner"`

	// Sanitized declared filename
	Filename string `db:"filename" json:"filename"`

	// Backend object key
	ObjectKey string `db:"object_key" json:"-"`

	// Declared size; replaced with the backend-reported size at finalize
	SizeBytes int64 `db:"size_bytes" json:"size_bytes"`

	// Backend-issued multipart upload id; nil on legacy/broken records
	MultipartID *string `db:"multipart_id" json:"-"`

	Status UploadStatus `db:"status" json:"status"`

	Expiry *time.Time `db:"expiry" json:"expiry,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasExpired reports whether the upload's expiry has passed.
func (u *Upload) HasExpired(now time.Time) bool {
	return u.Expiry != nil && !u.Expiry.After(now)
}

// CanWrite reports whether user may operate on this upload.
func (u *Upload) CanWrite(user string) bool {
	return user != "" && u.Owner == user
}
