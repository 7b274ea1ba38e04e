package models

import (
	"time"

	"github.com/google/uuid"
)

// Package is the named unit (namespace + name) of which versions are
// published.
// Maps to: packages table
type Package struct {
	PackageID   uuid.UUID `db:"package_id" json:"package_id"`
	NamespaceID uuid.UUID `db:"namespace_id" json:"namespace_id"`
	OwnerTeamID uuid.UUID `db:"owner_team_id" json:"owner_team_id"`

	// Case fixed at first creation
	Name string `db:"name" json:"name"`

	IsActive     bool `db:"is_active" json:"is_active"`
	IsDeprecated bool `db:"is_deprecated" json:"is_deprecated"`
	IsPinned     bool `db:"is_pinned" json:"is_pinned"`

	// Newest active version by semver ordering; nil when no active version
	// exists
	LatestVersionID *uuid.UUID `db:"latest_version_id" json:"latest_version_id,omitempty"`

	DateCreated time.Time `db:"date_created" json:"date_created"`
	DateUpdated time.Time `db:"date_updated" json:"date_updated"`

	// Denormalized for serialization; populated by joins
	NamespaceName string `db:"-" json:"namespace,omitempty"`
	OwnerName     string `db:"-" json:"owner,omitempty"`
}

// FullName returns the namespace-qualified package name.
func (p *Package) FullName() string {
	return p.NamespaceName + "-" + p.Name
}

// PackageVersion is an immutable release of a package. Only downloads,
// is_active and counters may change after creation.
// Maps to: package_versions table
type PackageVersion struct {
	VersionID uuid.UUID `db:"version_id" json:"version_id"`
	PackageID uuid.UUID `db:"package_id" json:"package_id"`

	// Equals the package name
	Name          string `db:"name" json:"name"`
	VersionNumber string `db:"version_number" json:"version_number"`
	Description   string `db:"description" json:"description"`
	WebsiteURL    string `db:"website_url" json:"website_url"`
	Readme        string `db:"readme" json:"-"`
	Changelog     *string `db:"changelog" json:"-"`

	IconDigest string `db:"icon_digest" json:"-"`
	FileDigest string `db:"file_digest" json:"-"`
	FileSize   int64  `db:"file_size" json:"file_size"`

	Downloads  int64  `db:"downloads" json:"downloads"`
	FormatSpec string `db:"format_spec" json:"format_spec"`
	IsActive   bool   `db:"is_active" json:"is_active"`

	DateCreated time.Time `db:"date_created" json:"date_created"`

	// Denormalized for serialization; populated by joins
	NamespaceName string   `db:"-" json:"namespace,omitempty"`
	Dependencies  []string `db:"-" json:"dependencies,omitempty"`
}

// FullVersionName returns the namespace-name-version reference string.
func (v *PackageVersion) FullVersionName() string {
	return v.NamespaceName + "-" + v.Name + "-" + v.VersionNumber
}

// FileTreeEntry is one exploded archive entry of a version.
// Maps to: file_tree_entries table
type FileTreeEntry struct {
	VersionID  uuid.UUID `db:"version_id" json:"version_id"`
	Path       string    `db:"path" json:"path"`
	BlobDigest string    `db:"blob_digest" json:"blob_digest"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
}

// Package format identifiers. The active format governs manifest validation.
const (
	FormatSpecV1     = "thunderstore.io:v1"
	FormatSpecLegacy = "thunderstore.io:v0.0"
)
