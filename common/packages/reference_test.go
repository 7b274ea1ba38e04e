package packages

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thunderstore/registry/common/apierrors"
)

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("TeamSloths-SuperMod-1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "TeamSloths", ref.Namespace)
	assert.Equal(t, "SuperMod", ref.Name)
	assert.Equal(t, "1.0.0", ref.Version)
	assert.Equal(t, "TeamSloths-SuperMod-1.0.0", ref.String())
}

func TestParseReference_Invalid(t *testing.T) {
	for _, s := range []string{"", "NoVersion", "Team-Mod", "Team-Mod-1.0.0-extra", "-Mod-1.0.0", "Team--1.0.0", "Team-Mod-"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseReference(s)
			v, ok := apierrors.AsValidation(err)
			require.True(t, ok, "expected validation error for %q", s)
			assert.Contains(t, v.Fields, "dependencies")
		})
	}
}

func TestReferenceSamePackage(t *testing.T) {
	ref := Reference{Namespace: "TeamSloths", Name: "SuperMod", Version: "1.0.0"}
	assert.True(t, ref.SamePackage("TeamSloths", "SuperMod"))
	assert.True(t, ref.SamePackage("teamsloths", "supermod"))
	assert.False(t, ref.SamePackage("TeamSloths", "OtherMod"))
	assert.False(t, ref.SamePackage("OtherTeam", "SuperMod"))
}

func TestResolver_TooManyDependencies(t *testing.T) {
	r := NewResolver(nil, 100)

	deps := make([]string, 101)
	for i := range deps {
		deps[i] = fmt.Sprintf("Team-Mod%d-1.0.0", i)
	}

	_, err := r.Resolve(context.Background(), deps, "Owner", "OwnMod")
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields["dependencies"][0], "Too many dependencies")
}

func TestResolver_SelfDependency(t *testing.T) {
	r := NewResolver(nil, 100)

	_, err := r.Resolve(context.Background(), []string{"TeamSloths-SuperMod-1.0.0"}, "teamsloths", "supermod")
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields[apierrors.NonFieldErrors], "Package depending on itself is not allowed")
}

func TestResolver_MalformedReference(t *testing.T) {
	r := NewResolver(nil, 100)

	_, err := r.Resolve(context.Background(), []string{"garbage"}, "Owner", "OwnMod")
	v, ok := apierrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "dependencies")
}

func TestResolver_EmptyDependencies(t *testing.T) {
	r := NewResolver(nil, 100)

	resolved, err := r.Resolve(context.Background(), nil, "Owner", "OwnMod")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}
