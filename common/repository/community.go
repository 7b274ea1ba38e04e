package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

// CommunityRepository handles database operations for communities
type CommunityRepository struct {
	q db.Querier
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(q db.Querier) *CommunityRepository {
	return &CommunityRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *CommunityRepository) WithTx(tx pgx.Tx) *CommunityRepository {
	return &CommunityRepository{q: tx}
}

// GetByIdentifier retrieves a community by its identifier
func (r *CommunityRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Community, error) {
	query := `
		SELECT community_id, identifier, name, require_package_approval, created_at
		FROM communities
		WHERE identifier = $1
	`

	community := &models.Community{}
	err := r.q.QueryRow(ctx, query, identifier).Scan(
		&community.CommunityID,
		&community.Identifier,
		&community.Name,
		&community.RequirePackageApproval,
		&community.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}

	return community, nil
}

// GetByID retrieves a community by id
func (r *CommunityRepository) GetByID(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	query := `
		SELECT community_id, identifier, name, require_package_approval, created_at
		FROM communities
		WHERE community_id = $1
	`

	community := &models.Community{}
	err := r.q.QueryRow(ctx, query, communityID).Scan(
		&community.CommunityID,
		&community.Identifier,
		&community.Name,
		&community.RequirePackageApproval,
		&community.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}

	return community, nil
}

// ListIdentifiers returns every community identifier
func (r *CommunityRepository) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT identifier FROM communities ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	var identifiers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan community identifier: %w", err)
		}
		identifiers = append(identifiers, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating communities: %w", err)
	}
	return identifiers, nil
}

// IsModerator reports whether username moderates the community
func (r *CommunityRepository) IsModerator(ctx context.Context, communityID uuid.UUID, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM community_moderators WHERE community_id = $1 AND username = $2)`

	var isModerator bool
	if err := r.q.QueryRow(ctx, query, communityID, username).Scan(&isModerator); err != nil {
		return false, fmt.Errorf("failed to check moderator: %w", err)
	}
	return isModerator, nil
}

// GetCategoriesBySlugs resolves category slugs within a community. Unknown
// slugs are absent from the result; the caller decides whether that is an
// error.
func (r *CommunityRepository) GetCategoriesBySlugs(ctx context.Context, communityID uuid.UUID, slugs []string) ([]*models.PackageCategory, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	query := `
		SELECT category_id, community_id, slug, name
		FROM package_categories
		WHERE community_id = $1 AND slug = ANY($2)
	`

	rows, err := r.q.Query(ctx, query, communityID, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.PackageCategory
	for rows.Next() {
		cat := &models.PackageCategory{}
		if err := rows.Scan(&cat.CategoryID, &cat.CommunityID, &cat.Slug, &cat.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}
