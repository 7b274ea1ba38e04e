package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the moderation state of a listing.
type ReviewStatus string

const (
	ReviewUnreviewed ReviewStatus = "unreviewed"
	ReviewApproved   ReviewStatus = "approved"
	ReviewRejected   ReviewStatus = "rejected"
)

// Community is an isolated listing context.
// Maps to: communities table
type Community struct {
	CommunityID uuid.UUID `db:"community_id" json:"community_id"`
	Identifier  string    `db:"identifier" json:"identifier"`
	Name        string    `db:"name" json:"name"`

	// When set, listings are publicly visible only after approval
	RequirePackageApproval bool `db:"require_package_approval" json:"require_package_approval"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PackageCategory is a community-scoped listing category.
// Maps to: package_categories table
type PackageCategory struct {
	CategoryID  uuid.UUID `db:"category_id" json:"category_id"`
	CommunityID uuid.UUID `db:"community_id" json:"community_id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
}

// VisibilityFlags controls who may see a listing in list and detail views.
type VisibilityFlags struct {
	PublicList      bool `db:"public_list" json:"public_list"`
	PublicDetail    bool `db:"public_detail" json:"public_detail"`
	OwnerList       bool `db:"owner_list" json:"owner_list"`
	OwnerDetail     bool `db:"owner_detail" json:"owner_detail"`
	ModeratorList   bool `db:"moderator_list" json:"moderator_list"`
	ModeratorDetail bool `db:"moderator_detail" json:"moderator_detail"`
}

// PackageListing is the appearance of a package within a community.
// Maps to: package_listings table
type PackageListing struct {
	ListingID   uuid.UUID `db:"listing_id" json:"listing_id"`
	PackageID   uuid.UUID `db:"package_id" json:"package_id"`
	CommunityID uuid.UUID `db:"community_id" json:"community_id"`

	HasNsfwContent  bool         `db:"has_nsfw_content" json:"has_nsfw_content"`
	ReviewStatus    ReviewStatus `db:"review_status" json:"review_status"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`

	Visibility VisibilityFlags `db:"-" json:"visibility"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
