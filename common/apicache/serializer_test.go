package apicache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/models"
)

func TestSerializeVersion(t *testing.T) {
	versionID := uuid.New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	pkg := &models.Package{Name: "SuperMod", NamespaceName: "TeamSloths"}
	version := &models.PackageVersion{
		VersionID:     versionID,
		Name:          "SuperMod",
		VersionNumber: "2.1.0",
		Description:   "does things",
		WebsiteURL:    "https://example.com",
		IconDigest:    "abc123",
		FileSize:      1024,
		Downloads:     42,
		IsActive:      true,
		DateCreated:   created,
	}

	out := serializeVersion("https://thunderstore.io", pkg, version, []string{"Other-Mod-1.0.0"})

	assert.Equal(t, "SuperMod", out.Name)
	assert.Equal(t, "TeamSloths-SuperMod-2.1.0", out.FullName)
	assert.Equal(t, "https://thunderstore.io/blobs/abc123.png", out.Icon)
	assert.Equal(t, "https://thunderstore.io/package/download/TeamSloths/SuperMod/2.1.0/", out.DownloadURL)
	assert.Equal(t, []string{"Other-Mod-1.0.0"}, out.Dependencies)
	assert.Equal(t, versionID.String(), out.UUID4)
	assert.Equal(t, int64(42), out.Downloads)
	assert.Equal(t, int64(1024), out.FileSize)
}

func TestSerializeVersion_NilDependencies(t *testing.T) {
	pkg := &models.Package{Name: "SuperMod", NamespaceName: "TeamSloths"}
	version := &models.PackageVersion{Name: "SuperMod", VersionNumber: "1.0.0"}

	out := serializeVersion("https://thunderstore.io", pkg, version, nil)

	// dependencies must serialize as [] rather than null
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dependencies":[]`)
}

func TestPackageURL(t *testing.T) {
	assert.Equal(t,
		"https://thunderstore.io/c/riskofrain2/p/TeamSloths/SuperMod/",
		packageURL("https://thunderstore.io", "riskofrain2", "TeamSloths", "SuperMod"),
	)
}

func TestIndexEntrySchema(t *testing.T) {
	entry := IndexEntry{
		Namespace:     "TeamSloths",
		Name:          "SuperMod",
		VersionNumber: "1.0.0",
		FileFormat:    models.FormatSpecV1,
		FileSize:      2048,
		Dependencies:  []string{},
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"namespace": "TeamSloths",
		"name": "SuperMod",
		"version_number": "1.0.0",
		"file_format": "thunderstore.io:v1",
		"file_size": 2048,
		"dependencies": []
	}`, string(data))
}
