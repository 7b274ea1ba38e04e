package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

const listingColumns = `
	l.listing_id, l.package_id, l.community_id, l.has_nsfw_content,
	l.review_status, l.rejection_reason,
	l.public_list, l.public_detail, l.owner_list, l.owner_detail,
	l.moderator_list, l.moderator_detail, l.created_at
`

// ListingRepository handles database operations for package listings
type ListingRepository struct {
	q db.Querier
}

// NewListingRepository creates a new listing repository
func NewListingRepository(q db.Querier) *ListingRepository {
	return &ListingRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *ListingRepository) WithTx(tx pgx.Tx) *ListingRepository {
	return &ListingRepository{q: tx}
}

func scanListing(row pgx.Row) (*models.PackageListing, error) {
	l := &models.PackageListing{}
	err := row.Scan(
		&l.ListingID,
		&l.PackageID,
		&l.CommunityID,
		&l.HasNsfwContent,
		&l.ReviewStatus,
		&l.RejectionReason,
		&l.Visibility.PublicList,
		&l.Visibility.PublicDetail,
		&l.Visibility.OwnerList,
		&l.Visibility.OwnerDetail,
		&l.Visibility.ModeratorList,
		&l.Visibility.ModeratorDetail,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetByPackageAndCommunity retrieves the listing join row
func (r *ListingRepository) GetByPackageAndCommunity(ctx context.Context, packageID, communityID uuid.UUID) (*models.PackageListing, error) {
	query := `SELECT ` + listingColumns + ` FROM package_listings l
		WHERE l.package_id = $1 AND l.community_id = $2`

	listing, err := scanListing(r.q.QueryRow(ctx, query, packageID, communityID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// GetByID retrieves a listing by id
func (r *ListingRepository) GetByID(ctx context.Context, listingID uuid.UUID) (*models.PackageListing, error) {
	query := `SELECT ` + listingColumns + ` FROM package_listings l WHERE l.listing_id = $1`

	listing, err := scanListing(r.q.QueryRow(ctx, query, listingID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// Create inserts a listing row
func (r *ListingRepository) Create(ctx context.Context, l *models.PackageListing) error {
	query := `
		INSERT INTO package_listings (listing_id, package_id, community_id,
			has_nsfw_content, review_status, rejection_reason,
			public_list, public_detail, owner_list, owner_detail,
			moderator_list, moderator_detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (package_id, community_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query,
		l.ListingID,
		l.PackageID,
		l.CommunityID,
		l.HasNsfwContent,
		l.ReviewStatus,
		l.RejectionReason,
		l.Visibility.PublicList,
		l.Visibility.PublicDetail,
		l.Visibility.OwnerList,
		l.Visibility.OwnerDetail,
		l.Visibility.ModeratorList,
		l.Visibility.ModeratorDetail,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// SetNsfw updates the listing's NSFW flag
func (r *ListingRepository) SetNsfw(ctx context.Context, listingID uuid.UUID, hasNsfw bool) error {
	query := `UPDATE package_listings SET has_nsfw_content = $2 WHERE listing_id = $1`

	if _, err := r.q.Exec(ctx, query, listingID, hasNsfw); err != nil {
		return fmt.Errorf("failed to set nsfw flag: %w", err)
	}
	return nil
}

// SetReviewStatus transitions the moderation state
func (r *ListingRepository) SetReviewStatus(ctx context.Context, listingID uuid.UUID, status models.ReviewStatus, reason *string) error {
	query := `
		UPDATE package_listings
		SET review_status = $2, rejection_reason = $3
		WHERE listing_id = $1
	`

	if _, err := r.q.Exec(ctx, query, listingID, status, reason); err != nil {
		return fmt.Errorf("failed to set review status: %w", err)
	}
	return nil
}

// SetVisibility stores the recomputed visibility flags
func (r *ListingRepository) SetVisibility(ctx context.Context, listingID uuid.UUID, flags models.VisibilityFlags) error {
	query := `
		UPDATE package_listings
		SET public_list = $2, public_detail = $3,
			owner_list = $4, owner_detail = $5,
			moderator_list = $6, moderator_detail = $7
		WHERE listing_id = $1
	`

	_, err := r.q.Exec(ctx, query, listingID,
		flags.PublicList, flags.PublicDetail,
		flags.OwnerList, flags.OwnerDetail,
		flags.ModeratorList, flags.ModeratorDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to set visibility: %w", err)
	}
	return nil
}

// ReplaceCategories rewrites the listing's category set
func (r *ListingRepository) ReplaceCategories(ctx context.Context, listingID uuid.UUID, categoryIDs []uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM listing_categories WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("failed to clear listing categories: %w", err)
	}

	for _, categoryID := range categoryIDs {
		query := `
			INSERT INTO listing_categories (listing_id, category_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`
		if _, err := r.q.Exec(ctx, query, listingID, categoryID); err != nil {
			return fmt.Errorf("failed to add listing category: %w", err)
		}
	}
	return nil
}

// ListCategoryNames returns the listing's category names
func (r *ListingRepository) ListCategoryNames(ctx context.Context, listingID uuid.UUID) ([]string, error) {
	query := `
		SELECT c.name
		FROM listing_categories lc
		JOIN package_categories c ON c.category_id = lc.category_id
		WHERE lc.listing_id = $1
		ORDER BY c.name
	`

	rows, err := r.q.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return names, nil
}

// ListingWithPackage pairs a listing with its package for serialization.
type ListingWithPackage struct {
	Listing *models.PackageListing
	Package *models.Package
}

// ListPubliclyVisible returns the community's publicly listed packages
// ordered for the v1 package list: pinned first, non-deprecated before
// deprecated, most recently updated first.
func (r *ListingRepository) ListPubliclyVisible(ctx context.Context, communityID uuid.UUID) ([]*ListingWithPackage, error) {
	query := `
		SELECT ` + listingColumns + `, ` + packageColumns + `
		FROM package_listings l
		JOIN packages p ON p.package_id = l.package_id
		JOIN namespaces n ON n.namespace_id = p.namespace_id
		JOIN teams t ON t.team_id = p.owner_team_id
		WHERE l.community_id = $1
			AND l.public_list
			AND p.is_active
			AND p.latest_version_id IS NOT NULL
		ORDER BY p.is_pinned DESC, p.is_deprecated ASC, p.date_updated DESC
	`

	rows, err := r.q.Query(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible listings: %w", err)
	}
	defer rows.Close()

	var result []*ListingWithPackage
	for rows.Next() {
		l := &models.PackageListing{}
		pkg := &models.Package{}
		err := rows.Scan(
			&l.ListingID,
			&l.PackageID,
			&l.CommunityID,
			&l.HasNsfwContent,
			&l.ReviewStatus,
			&l.RejectionReason,
			&l.Visibility.PublicList,
			&l.Visibility.PublicDetail,
			&l.Visibility.OwnerList,
			&l.Visibility.OwnerDetail,
			&l.Visibility.ModeratorList,
			&l.Visibility.ModeratorDetail,
			&l.CreatedAt,
			&pkg.PackageID,
			&pkg.NamespaceID,
			&pkg.OwnerTeamID,
			&pkg.Name,
			&pkg.IsActive,
			&pkg.IsDeprecated,
			&pkg.IsPinned,
			&pkg.LatestVersionID,
			&pkg.DateCreated,
			&pkg.DateUpdated,
			&pkg.NamespaceName,
			&pkg.OwnerName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		result = append(result, &ListingWithPackage{Listing: l, Package: pkg})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}
	return result, nil
}

// ListByPackage returns every listing of a package
func (r *ListingRepository) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]*models.PackageListing, error) {
	query := `SELECT ` + listingColumns + ` FROM package_listings l WHERE l.package_id = $1`

	rows, err := r.q.Query(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list package listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.PackageListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}
	return listings, nil
}
