package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
)

// Resolver maps textual dependency references onto existing package versions.
type Resolver struct {
	versions *repository.VersionRepository
	maxDeps  int
}

// NewResolver creates a dependency resolver
func NewResolver(versions *repository.VersionRepository, maxDeps int) *Resolver {
	return &Resolver{versions: versions, maxDeps: maxDeps}
}

// Resolve parses and resolves every dependency string, enforcing the count
// cap, no self-reference and no duplicate packages. The result preserves
// input order.
func (r *Resolver) Resolve(ctx context.Context, deps []string, ownNamespace, ownName string) ([]*models.PackageVersion, error) {
	if len(deps) > r.maxDeps {
		return nil, apierrors.FieldValidation("dependencies", fmt.Sprintf("Too many dependencies, maximum allowed is %d", r.maxDeps))
	}

	resolved := make([]*models.PackageVersion, 0, len(deps))
	seen := map[string]bool{}

	for _, dep := range deps {
		ref, err := ParseReference(dep)
		if err != nil {
			return nil, err
		}

		if ref.SamePackage(ownNamespace, ownName) {
			return nil, apierrors.Validation("Package depending on itself is not allowed")
		}

		key := strings.ToLower(ref.Namespace) + "-" + strings.ToLower(ref.Name)
		if seen[key] {
			return nil, apierrors.Validation("Cannot depend on multiple versions of the same package")
		}
		seen[key] = true

		version, err := r.versions.GetByReference(ctx, ref.Namespace, ref.Name, ref.Version)
		if err != nil {
			return nil, err
		}
		if version == nil {
			return nil, apierrors.Validation(fmt.Sprintf("No matching package found for reference: %s", ref))
		}
		resolved = append(resolved, version)
	}

	return resolved, nil
}
