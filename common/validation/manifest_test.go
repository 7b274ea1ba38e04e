package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/apierrors"
)

func validManifest() *Manifest {
	return &Manifest{
		Name:          "TestMod",
		VersionNumber: "1.0.0",
		Description:   "A test mod",
		WebsiteURL:    "https://example.com",
		Dependencies:  []string{"SomeTeam-SomeMod-1.0.0"},
	}
}

func TestParseManifest_Valid(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"name": "TestMod",
		"version_number": "1.45.320",
		"website_url": "https://example.com",
		"description": "desc",
		"dependencies": ["Team-Mod-1.0.0"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "TestMod", m.Name)
	assert.Equal(t, "1.45.320", m.VersionNumber)
	assert.Equal(t, []string{"Team-Mod-1.0.0"}, m.Dependencies)
}

func TestParseManifest_InvalidJSON(t *testing.T) {
	_, err := ParseManifest([]byte("{not json"))
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "manifest")
}

func TestParseManifest_NotUTF8(t *testing.T) {
	_, err := ParseManifest([]byte{0xff, 0xfe, '{', '}'})
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields["manifest"][0], "UTF-8")
}

func TestManifestValidate_Name(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple", "MyMod", false},
		{"underscores", "My_Mod_2", false},
		{"empty", "", true},
		{"hyphen", "My-Mod", true},
		{"space", "My Mod", true},
		{"unicode", "MöMod", true},
		{"max length", strings.Repeat("a", MaxNameLength), false},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			m.Name = tt.value
			err := m.Validate()
			if tt.wantErr {
				v, ok := apierrors.AsValidation(err)
				require.True(t, ok, "expected validation error, got %v", err)
				assert.Contains(t, v.Fields, "name")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManifestValidate_VersionNumber(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"1.0.0", false},
		{"0.0.0", false},
		{"99999.99999.9999", false},
		{"", true},
		{"1.0", true},
		{"1.0.0.0", true},
		{"1.0.0-beta", true},
		{"01.0.0", true},
		{"1.00.0", true},
		{"100000.0.0", true},
		{"99999.99999.99999", true}, // 17 characters
		{"v1.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			m := validManifest()
			m.VersionNumber = tt.value
			err := m.Validate()
			if tt.wantErr {
				v, ok := apierrors.AsValidation(err)
				require.True(t, ok, "expected validation error, got %v", err)
				assert.Contains(t, v.Fields, "version_number")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManifestValidate_WebsiteURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"https", "https://example.com/mod", false},
		{"http", "http://example.com", false},
		{"mailto", "mailto:dev@example.com", false},
		{"ipfs", "ipfs://QmHash", false},
		{"javascript", "javascript:alert(1)", true},
		{"ftp", "ftp://example.com", true},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxWebsiteURLLength), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			m.WebsiteURL = tt.value
			err := m.Validate()
			if tt.wantErr {
				v, ok := apierrors.AsValidation(err)
				require.True(t, ok, "expected validation error, got %v", err)
				assert.Contains(t, v.Fields, "website_url")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManifestValidate_DescriptionTooLong(t *testing.T) {
	m := validManifest()
	m.Description = strings.Repeat("a", MaxDescriptionLength+1)
	err := m.Validate()
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "description")
}

func TestManifestValidate_TooManyDependencies(t *testing.T) {
	m := validManifest()
	m.Dependencies = make([]string, MaxManifestDependencies+1)
	err := m.Validate()
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "dependencies")
}

func TestManifestValidate_Installers(t *testing.T) {
	m := validManifest()
	m.Installers = []Installer{{Identifier: "legacy"}, {Identifier: "legacy"}}
	err := m.Validate()
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "installers")

	m = validManifest()
	m.Installers = []Installer{{Identifier: "legacy"}, {Identifier: "bepinex"}}
	assert.NoError(t, m.Validate())
}

func TestManifestValidate_CollectsMultipleErrors(t *testing.T) {
	m := &Manifest{Name: "bad name", VersionNumber: "nope"}
	err := m.Validate()
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "name")
	assert.Contains(t, v.Fields, "version_number")
}

func TestValidTeamName(t *testing.T) {
	assert.True(t, ValidTeamName("TeamSloths"))
	assert.True(t, ValidTeamName("Team_Sloths"))
	assert.True(t, ValidTeamName("a"))
	assert.False(t, ValidTeamName(""))
	assert.False(t, ValidTeamName("_Team"))
	assert.False(t, ValidTeamName("Team_"))
	assert.False(t, ValidTeamName("Team Sloths"))
}
