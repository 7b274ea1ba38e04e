package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheKind identifies a derived cache artifact family.
type CacheKind string

const (
	// CacheKindPackageListV1 is the per-community package listing JSON.
	CacheKindPackageListV1 CacheKind = "package_list_v1"
	// CacheKindGlobalPackageIndex is the newline-delimited global version
	// index. Its community key is empty.
	CacheKindGlobalPackageIndex CacheKind = "global_package_index"
)

// CacheBlob tags a blob as a pre-rendered public API response.
// Maps to: cache_blobs table
type CacheBlob struct {
	CacheID uuid.UUID `db:"cache_id" json:"cache_id"`

	// Community identifier; empty for global kinds
	Community string `db:"community" json:"community,omitempty"`

	Kind CacheKind `db:"kind" json:"kind"`

	BlobDigest string `db:"blob_digest" json:"blob_digest"`

	LastModified time.Time `db:"last_modified" json:"last_modified"`
}
