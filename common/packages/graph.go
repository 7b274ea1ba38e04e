package packages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/validation"
)

// Graph is the mutation surface of the package entity model. All writes to
// packages, versions and listings go through these operations.
type Graph struct {
	db          *db.DB
	teams       *repository.TeamRepository
	packages    *repository.PackageRepository
	versions    *repository.VersionRepository
	listings    *repository.ListingRepository
	communities *repository.CommunityRepository
	log         *logger.Logger
}

// NewGraph creates the package graph service
func NewGraph(
	database *db.DB,
	teams *repository.TeamRepository,
	packages *repository.PackageRepository,
	versions *repository.VersionRepository,
	listings *repository.ListingRepository,
	communities *repository.CommunityRepository,
	log *logger.Logger,
) *Graph {
	return &Graph{
		db:          database,
		teams:       teams,
		packages:    packages,
		versions:    versions,
		listings:    listings,
		communities: communities,
		log:         log,
	}
}

// ComputeVisibility derives the six visibility flags from listing, package
// and version state. A listing is publicly visible iff the package and
// version are active, it is not rejected, and the community either does not
// require approval or has approved it. Owners and moderators see their
// listings regardless of review state.
func ComputeVisibility(pkgActive, versionActive bool, review models.ReviewStatus, requireApproval bool) models.VisibilityFlags {
	base := pkgActive && versionActive
	public := base && review != models.ReviewRejected &&
		(!requireApproval || review == models.ReviewApproved)

	return models.VisibilityFlags{
		PublicList:      public,
		PublicDetail:    public,
		OwnerList:       base,
		OwnerDetail:     base,
		ModeratorList:   base,
		ModeratorDetail: base,
	}
}

// CreateVersion materializes a validated submission inside the given
// transaction: team, namespace, package, version, dependencies, file tree
// and per-community listings become visible together or not at all.
func (g *Graph) CreateVersion(ctx context.Context, tx pgx.Tx, payload *validation.SubmissionPayload, deps []*models.PackageVersion, submitter string) (*models.PackageVersion, error) {
	teams := g.teams.WithTx(tx)
	pkgs := g.packages.WithTx(tx)
	versions := g.versions.WithTx(tx)
	listings := g.listings.WithTx(tx)

	team, ns, err := teams.EnsureTeamWithNamespace(ctx, payload.TeamName, submitter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	pkg, err := pkgs.GetByName(ctx, ns.Name, payload.Manifest.Name)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		pkg = &models.Package{
			PackageID:     uuid.New(),
			NamespaceID:   ns.NamespaceID,
			OwnerTeamID:   team.TeamID,
			Name:          payload.Manifest.Name,
			IsActive:      true,
			DateCreated:   now,
			DateUpdated:   now,
			NamespaceName: ns.Name,
			OwnerName:     team.Name,
		}
		if err := pkgs.Create(ctx, pkg); err != nil {
			return nil, err
		}
	} else {
		if pkg.NamespaceID != ns.NamespaceID || pkg.OwnerTeamID != team.TeamID {
			return nil, fmt.Errorf("package %s ownership does not match namespace %s", pkg.Name, ns.Name)
		}
		if err := pkgs.LockRow(ctx, tx, pkg.PackageID); err != nil {
			return nil, err
		}
	}

	version := &models.PackageVersion{
		VersionID:     uuid.New(),
		PackageID:     pkg.PackageID,
		Name:          pkg.Name,
		VersionNumber: payload.Manifest.VersionNumber,
		Description:   payload.Manifest.Description,
		WebsiteURL:    payload.Manifest.WebsiteURL,
		Readme:        payload.Readme,
		Changelog:     payload.Changelog,
		IconDigest:    payload.IconBlob.Digest,
		FileDigest:    payload.ArchiveBlob.Digest,
		FileSize:      payload.ArchiveSize,
		FormatSpec:    models.FormatSpecV1,
		IsActive:      true,
		DateCreated:   now,
		NamespaceName: ns.Name,
	}
	if err := versions.Create(ctx, version); err != nil {
		return nil, err
	}

	for i, dep := range deps {
		if err := versions.AddDependency(ctx, version.VersionID, dep.VersionID, i); err != nil {
			return nil, err
		}
		version.Dependencies = append(version.Dependencies, dep.FullVersionName())
	}

	for _, installer := range payload.Manifest.Installers {
		if err := versions.AddInstaller(ctx, version.VersionID, installer.Identifier); err != nil {
			return nil, err
		}
	}

	for _, entry := range payload.FileTree {
		entry.VersionID = version.VersionID
		if err := versions.AddFileTreeEntry(ctx, &entry); err != nil {
			return nil, err
		}
	}

	// Package.latest points at the newest active version; inserted first,
	// linked second to break the package <-> version reference cycle.
	active, err := versions.ListActiveByPackage(ctx, pkg.PackageID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		if err := pkgs.SetLatest(ctx, pkg.PackageID, active[0].VersionID); err != nil {
			return nil, err
		}
	}

	for _, community := range payload.Communities {
		if err := g.upsertListing(ctx, listings, pkg, community, payload, now); err != nil {
			return nil, err
		}
	}

	return version, nil
}

func (g *Graph) upsertListing(ctx context.Context, listings *repository.ListingRepository, pkg *models.Package, community *models.Community, payload *validation.SubmissionPayload, now time.Time) error {
	listing, err := listings.GetByPackageAndCommunity(ctx, pkg.PackageID, community.CommunityID)
	if err != nil {
		return err
	}

	if listing == nil {
		review := models.ReviewApproved
		if community.RequirePackageApproval {
			review = models.ReviewUnreviewed
		}
		listing = &models.PackageListing{
			ListingID:      uuid.New(),
			PackageID:      pkg.PackageID,
			CommunityID:    community.CommunityID,
			HasNsfwContent: payload.HasNsfwContent,
			ReviewStatus:   review,
			Visibility:     ComputeVisibility(pkg.IsActive, true, review, community.RequirePackageApproval),
			CreatedAt:      now,
		}
		if err := listings.Create(ctx, listing); err != nil {
			return err
		}
	} else {
		if err := listings.SetNsfw(ctx, listing.ListingID, payload.HasNsfwContent); err != nil {
			return err
		}
		flags := ComputeVisibility(pkg.IsActive, true, listing.ReviewStatus, community.RequirePackageApproval)
		if err := listings.SetVisibility(ctx, listing.ListingID, flags); err != nil {
			return err
		}
	}

	if cats := payload.Categories[community.Identifier]; len(cats) > 0 {
		ids := make([]uuid.UUID, 0, len(cats))
		for _, cat := range cats {
			ids = append(ids, cat.CategoryID)
		}
		if err := listings.ReplaceCategories(ctx, listing.ListingID, ids); err != nil {
			return err
		}
	}
	return nil
}

// Deprecate marks the package deprecated. Idempotent; does not touch
// date_updated. Returns the identifiers of communities whose caches are now
// stale.
func (g *Graph) Deprecate(ctx context.Context, namespace, name, agent string) ([]string, error) {
	return g.setDeprecated(ctx, namespace, name, agent, true)
}

// Undeprecate clears the deprecation flag.
func (g *Graph) Undeprecate(ctx context.Context, namespace, name, agent string) ([]string, error) {
	return g.setDeprecated(ctx, namespace, name, agent, false)
}

func (g *Graph) setDeprecated(ctx context.Context, namespace, name, agent string, deprecated bool) ([]string, error) {
	pkg, err := g.ownedPackage(ctx, namespace, name, agent)
	if err != nil {
		return nil, err
	}
	if err := g.packages.SetDeprecated(ctx, pkg.PackageID, deprecated); err != nil {
		return nil, err
	}
	return g.affectedCommunities(ctx, pkg.PackageID)
}

// ApproveListing approves the listing and refreshes its visibility.
// Idempotent. Requires community moderator.
func (g *Graph) ApproveListing(ctx context.Context, listingID uuid.UUID, agent string) (string, error) {
	return g.review(ctx, listingID, agent, models.ReviewApproved, nil)
}

// RejectListing rejects the listing with a reason and refreshes visibility.
// Requires community moderator.
func (g *Graph) RejectListing(ctx context.Context, listingID uuid.UUID, agent, reason string) (string, error) {
	return g.review(ctx, listingID, agent, models.ReviewRejected, &reason)
}

func (g *Graph) review(ctx context.Context, listingID uuid.UUID, agent string, status models.ReviewStatus, reason *string) (string, error) {
	listing, community, err := g.moderatedListing(ctx, listingID, agent)
	if err != nil {
		return "", err
	}

	// The review status and the derived visibility flags must land together,
	// with the package row locked against concurrent version writes.
	err = g.db.InTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		pkgs := g.packages.WithTx(tx)
		if err := pkgs.LockRow(txCtx, tx, listing.PackageID); err != nil {
			return err
		}
		pkg, err := pkgs.GetByID(txCtx, listing.PackageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return fmt.Errorf("listing %s references missing package", listingID)
		}

		listings := g.listings.WithTx(tx)
		if err := listings.SetReviewStatus(txCtx, listingID, status, reason); err != nil {
			return err
		}

		active, err := g.versions.WithTx(tx).ListActiveByPackage(txCtx, pkg.PackageID)
		if err != nil {
			return err
		}
		flags := reviewedVisibility(pkg, active, status, community.RequirePackageApproval)
		return listings.SetVisibility(txCtx, listingID, flags)
	})
	if err != nil {
		return "", err
	}
	return community.Identifier, nil
}

// reviewedVisibility recomputes the listing flags after a moderation decision.
// Version activity comes from the live version set, not the latest-version
// pointer, which may lag behind deactivations.
func reviewedVisibility(pkg *models.Package, active []*models.PackageVersion, status models.ReviewStatus, requireApproval bool) models.VisibilityFlags {
	return ComputeVisibility(pkg.IsActive, len(active) > 0, status, requireApproval)
}

// UpdateListingCategories replaces the listing's categories. Every category
// must belong to the listing's community. Requires community moderator.
func (g *Graph) UpdateListingCategories(ctx context.Context, listingID uuid.UUID, agent string, slugs []string) (string, error) {
	listing, community, err := g.moderatedListing(ctx, listingID, agent)
	if err != nil {
		return "", err
	}

	resolved, err := g.communities.GetCategoriesBySlugs(ctx, community.CommunityID, slugs)
	if err != nil {
		return "", err
	}
	if len(resolved) != len(slugs) {
		return "", apierrors.FieldValidation("categories", fmt.Sprintf("One or more categories do not exist in community %s", community.Identifier))
	}

	ids := make([]uuid.UUID, 0, len(resolved))
	for _, cat := range resolved {
		ids = append(ids, cat.CategoryID)
	}

	// ReplaceCategories is a delete plus inserts; a partial failure must not
	// leave the listing with no categories.
	err = g.db.InTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		if err := g.packages.LockRow(txCtx, tx, listing.PackageID); err != nil {
			return err
		}
		return g.listings.WithTx(tx).ReplaceCategories(txCtx, listing.ListingID, ids)
	})
	if err != nil {
		return "", err
	}
	return community.Identifier, nil
}

// IncrementDownload bumps the version's download counter, best-effort.
func (g *Graph) IncrementDownload(ctx context.Context, versionID uuid.UUID) error {
	return g.versions.IncrementDownloads(ctx, versionID)
}

func (g *Graph) ownedPackage(ctx context.Context, namespace, name, agent string) (*models.Package, error) {
	pkg, err := g.packages.GetByName(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, apierrors.NotFound.New("package %s-%s not found", namespace, name)
	}

	role, err := g.teams.GetMemberRole(ctx, pkg.OwnerTeamID, agent)
	if err != nil {
		return nil, err
	}
	if role == nil || *role != models.RoleOwner {
		return nil, apierrors.PermissionDenied.New("not authorized to manage this package")
	}
	return pkg, nil
}

func (g *Graph) moderatedListing(ctx context.Context, listingID uuid.UUID, agent string) (*models.PackageListing, *models.Community, error) {
	listing, err := g.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if listing == nil {
		return nil, nil, apierrors.NotFound.New("listing %s not found", listingID)
	}

	isModerator, err := g.communities.IsModerator(ctx, listing.CommunityID, agent)
	if err != nil {
		return nil, nil, err
	}
	if !isModerator {
		return nil, nil, apierrors.PermissionDenied.New("not authorized to moderate this listing")
	}

	community, err := g.communities.GetByID(ctx, listing.CommunityID)
	if err != nil {
		return nil, nil, err
	}
	if community == nil {
		return nil, nil, fmt.Errorf("listing %s references missing community", listingID)
	}
	return listing, community, nil
}

// affectedCommunities returns the identifiers of every community the package
// is listed in.
func (g *Graph) affectedCommunities(ctx context.Context, packageID uuid.UUID) ([]string, error) {
	listings, err := g.listings.ListByPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	identifiers := make([]string, 0, len(listings))
	for _, listing := range listings {
		community, err := g.communities.GetByID(ctx, listing.CommunityID)
		if err != nil {
			return nil, err
		}
		if community != nil {
			identifiers = append(identifiers, community.Identifier)
		}
	}
	return identifiers, nil
}
