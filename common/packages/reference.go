// Package packages holds the package graph: reference parsing, dependency
// resolution and the narrow mutation surface through which every write to
// packages, versions and listings goes.
package packages

import (
	"fmt"
	"strings"

	"github.com/thunderstore/registry/common/apierrors"
)

// Reference is a parsed namespace-name-version dependency string. Namespace
// and package names never contain hyphens, so the string always splits into
// exactly three parts.
type Reference struct {
	Namespace string
	Name      string
	Version   string
}

// ParseReference parses a namespace-name-version string.
func ParseReference(s string) (Reference, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Reference{}, apierrors.FieldValidation("dependencies", fmt.Sprintf("Invalid package reference: %s", s))
	}
	return Reference{Namespace: parts[0], Name: parts[1], Version: parts[2]}, nil
}

// String renders the canonical reference form.
func (r Reference) String() string {
	return r.Namespace + "-" + r.Name + "-" + r.Version
}

// SamePackage reports whether two references name the same package,
// case-insensitively and ignoring version.
func (r Reference) SamePackage(namespace, name string) bool {
	return strings.EqualFold(r.Namespace, namespace) && strings.EqualFold(r.Name, name)
}
