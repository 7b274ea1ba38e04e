package packages

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/thunderstore/registry/common/models"
)

func TestComputeVisibility(t *testing.T) {
	tests := []struct {
		name            string
		pkgActive       bool
		versionActive   bool
		review          models.ReviewStatus
		requireApproval bool
		wantPublic      bool
		wantOwner       bool
	}{
		{"active unreviewed open community", true, true, models.ReviewUnreviewed, false, true, true},
		{"active unreviewed gated community", true, true, models.ReviewUnreviewed, true, false, true},
		{"active approved gated community", true, true, models.ReviewApproved, true, true, true},
		{"active rejected open community", true, true, models.ReviewRejected, false, false, true},
		{"active rejected gated community", true, true, models.ReviewRejected, true, false, true},
		{"inactive package", false, true, models.ReviewApproved, false, false, false},
		{"inactive version", true, false, models.ReviewApproved, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := ComputeVisibility(tt.pkgActive, tt.versionActive, tt.review, tt.requireApproval)
			assert.Equal(t, tt.wantPublic, flags.PublicList, "public_list")
			assert.Equal(t, tt.wantPublic, flags.PublicDetail, "public_detail")
			assert.Equal(t, tt.wantOwner, flags.OwnerList, "owner_list")
			assert.Equal(t, tt.wantOwner, flags.OwnerDetail, "owner_detail")
			assert.Equal(t, tt.wantOwner, flags.ModeratorList, "moderator_list")
			assert.Equal(t, tt.wantOwner, flags.ModeratorDetail, "moderator_detail")
		})
	}
}

func TestReviewedVisibility(t *testing.T) {
	stale := uuid.New()
	pkg := &models.Package{IsActive: true, LatestVersionID: &stale}

	// A stale latest-version pointer must not keep a versionless package
	// visible after review.
	flags := reviewedVisibility(pkg, nil, models.ReviewApproved, false)
	assert.False(t, flags.PublicList)
	assert.False(t, flags.OwnerList)

	active := []*models.PackageVersion{{VersionID: uuid.New(), IsActive: true}}
	flags = reviewedVisibility(pkg, active, models.ReviewApproved, true)
	assert.True(t, flags.PublicList)

	flags = reviewedVisibility(pkg, active, models.ReviewRejected, false)
	assert.False(t, flags.PublicList)
	assert.True(t, flags.OwnerList)
}
