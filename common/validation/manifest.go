package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/thunderstore/registry/common/apierrors"
)

// Manifest field bounds.
const (
	MaxNameLength        = 128
	MaxVersionLength     = 16
	MaxVersionComponent  = 99999
	MaxDescriptionLength = 256
	MaxWebsiteURLLength  = 1024
	// Shape cap on the manifest's dependency array; the resolver applies the
	// stricter configured cap on resolved references.
	MaxManifestDependencies = 1000
)

var (
	packageNameRe   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	versionNumberRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	teamNameRe      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_]*[A-Za-z0-9])?$`)
)

var allowedURLSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"ipfs":   true,
}

// Installer references an installer declaration in the manifest.
type Installer struct {
	Identifier string `json:"identifier"`
}

// Manifest is the parsed manifest.json of a package archive. Unknown fields
// are ignored for forward compatibility; known fields are validated strictly.
type Manifest struct {
	Name          string      `json:"name"`
	VersionNumber string      `json:"version_number"`
	WebsiteURL    string      `json:"website_url"`
	Description   string      `json:"description"`
	Dependencies  []string    `json:"dependencies"`
	Installers    []Installer `json:"installers,omitempty"`
}

// ParseManifest decodes and validates manifest.json bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	if !utf8.Valid(data) {
		return nil, apierrors.FieldValidation("manifest", "manifest.json is not UTF-8 encoded")
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, apierrors.FieldValidation("manifest", "manifest.json is not valid JSON")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks every known manifest field against its rules.
func (m *Manifest) Validate() error {
	v := apierrors.NewValidation()

	switch {
	case m.Name == "":
		v.Add("name", "This field is required")
	case len(m.Name) > MaxNameLength:
		v.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters", MaxNameLength))
	case !packageNameRe.MatchString(m.Name):
		v.Add("name", "Package names can only contain a-z A-Z 0-9 _ characters")
	}

	if err := validateVersionNumber(m.VersionNumber); err != "" {
		v.Add("version_number", err)
	}

	if m.WebsiteURL != "" {
		if len(m.WebsiteURL) > MaxWebsiteURLLength {
			v.Add("website_url", fmt.Sprintf("Ensure this field has no more than %d characters", MaxWebsiteURLLength))
		} else if u, err := url.Parse(m.WebsiteURL); err != nil || !allowedURLSchemes[u.Scheme] {
			v.Add("website_url", "Enter a valid URL with scheme http, https, mailto or ipfs")
		}
	}

	if len(m.Description) > MaxDescriptionLength {
		v.Add("description", fmt.Sprintf("Ensure this field has no more than %d characters", MaxDescriptionLength))
	}

	if len(m.Dependencies) > MaxManifestDependencies {
		v.Add("dependencies", fmt.Sprintf("Ensure this field has no more than %d entries", MaxManifestDependencies))
	}

	seen := map[string]bool{}
	for _, installer := range m.Installers {
		if installer.Identifier == "" {
			v.Add("installers", "Installer identifier must not be empty")
			continue
		}
		if seen[installer.Identifier] {
			v.Add("installers", fmt.Sprintf("Duplicate installer identifier: %s", installer.Identifier))
		}
		seen[installer.Identifier] = true
	}

	return v.Err()
}

// validateVersionNumber enforces the strict Major.Minor.Patch format:
// three numeric components, no leading zeros, each at most 99999, the
// whole string at most 16 characters.
func validateVersionNumber(version string) string {
	if version == "" {
		return "This field is required"
	}
	if len(version) > MaxVersionLength {
		return fmt.Sprintf("Ensure this field has no more than %d characters", MaxVersionLength)
	}
	if !versionNumberRe.MatchString(version) {
		return "Version numbers must follow the Major.Minor.Patch format (e.g. 1.45.320)"
	}
	for _, part := range strings.Split(version, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n > MaxVersionComponent || strconv.Itoa(n) != part {
			return "Version numbers must follow the Major.Minor.Patch format (e.g. 1.45.320)"
		}
	}
	return ""
}

// ValidTeamName reports whether name is an acceptable team/namespace name.
func ValidTeamName(name string) bool {
	return teamNameRe.MatchString(name)
}
