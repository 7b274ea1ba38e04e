package models

import "time"

// Blob is a content-addressed byte sequence.
// Maps to: blobs table
type Blob struct {
	// Hex-encoded SHA-256 of the bytes
	Digest string `db:"digest" json:"digest"`

	SizeBytes int64 `db:"size_bytes" json:"size_bytes"`

	ContentType string `db:"content_type" json:"content_type"`

	ContentEncoding string `db:"content_encoding" json:"content_encoding,omitempty"`

	// Tombstone: set before the backend object is erased so a crash between
	// the two steps is recoverable
	IsDeleted bool `db:"is_deleted" json:"is_deleted"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ObjectKey returns the deterministic backend key for the blob's bytes.
func (b *Blob) ObjectKey() string {
	return BlobObjectKey(b.Digest)
}

// BlobObjectKey builds the backend key for a digest.
func BlobObjectKey(digest string) string {
	return "sha256/" + digest + ".blob"
}
