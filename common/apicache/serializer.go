package apicache

import (
	"fmt"
	"time"

	"github.com/thunderstore/registry/common/models"
)

// PackageVersionV1 is one version entry in the v1 package list.
type PackageVersionV1 struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	VersionNumber string    `json:"version_number"`
	Dependencies  []string  `json:"dependencies"`
	DownloadURL   string    `json:"download_url"`
	Downloads     int64     `json:"downloads"`
	DateCreated   time.Time `json:"date_created"`
	WebsiteURL    string    `json:"website_url"`
	IsActive      bool      `json:"is_active"`
	UUID4         string    `json:"uuid4"`
	FileSize      int64     `json:"file_size"`
}

// PackageListingV1 is one package entry in the v1 package list.
type PackageListingV1 struct {
	Name           string             `json:"name"`
	FullName       string             `json:"full_name"`
	Owner          string             `json:"owner"`
	PackageURL     string             `json:"package_url"`
	DateCreated    time.Time          `json:"date_created"`
	DateUpdated    time.Time          `json:"date_updated"`
	UUID4          string             `json:"uuid4"`
	RatingScore    int                `json:"rating_score"`
	IsPinned       bool               `json:"is_pinned"`
	IsDeprecated   bool               `json:"is_deprecated"`
	HasNsfwContent bool               `json:"has_nsfw_content"`
	Categories     []string           `json:"categories"`
	Versions       []PackageVersionV1 `json:"versions"`
	DonationLink   *string            `json:"donation_link,omitempty"`
}

// IndexEntry is one line of the newline-delimited global package index.
// Dependency download URLs are omitted; clients reconstruct them from the
// namespace-name-version references.
type IndexEntry struct {
	Namespace     string   `json:"namespace"`
	Name          string   `json:"name"`
	VersionNumber string   `json:"version_number"`
	FileFormat    string   `json:"file_format"`
	FileSize      int64    `json:"file_size"`
	Dependencies  []string `json:"dependencies"`
}

func packageURL(baseURL, community, namespace, name string) string {
	return fmt.Sprintf("%s/c/%s/p/%s/%s/", baseURL, community, namespace, name)
}

func downloadURL(baseURL, namespace, name, version string) string {
	return fmt.Sprintf("%s/package/download/%s/%s/%s/", baseURL, namespace, name, version)
}

func iconURL(baseURL, digest string) string {
	return fmt.Sprintf("%s/blobs/%s.png", baseURL, digest)
}

func serializeVersion(baseURL string, pkg *models.Package, v *models.PackageVersion, deps []string) PackageVersionV1 {
	if deps == nil {
		deps = []string{}
	}
	return PackageVersionV1{
		Name:          v.Name,
		FullName:      fmt.Sprintf("%s-%s-%s", pkg.NamespaceName, v.Name, v.VersionNumber),
		Description:   v.Description,
		Icon:          iconURL(baseURL, v.IconDigest),
		VersionNumber: v.VersionNumber,
		Dependencies:  deps,
		DownloadURL:   downloadURL(baseURL, pkg.NamespaceName, v.Name, v.VersionNumber),
		Downloads:     v.Downloads,
		DateCreated:   v.DateCreated,
		WebsiteURL:    v.WebsiteURL,
		IsActive:      v.IsActive,
		UUID4:         v.VersionID.String(),
		FileSize:      v.FileSize,
	}
}
