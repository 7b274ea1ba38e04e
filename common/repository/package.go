package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

const packageColumns = `
	p.package_id, p.namespace_id, p.owner_team_id, p.name,
	p.is_active, p.is_deprecated, p.is_pinned, p.latest_version_id,
	p.date_created, p.date_updated, n.name, t.name
`

const packageJoins = `
	FROM packages p
	JOIN namespaces n ON n.namespace_id = p.namespace_id
	JOIN teams t ON t.team_id = p.owner_team_id
`

// PackageRepository handles database operations for packages
type PackageRepository struct {
	q db.Querier
}

// NewPackageRepository creates a new package repository
func NewPackageRepository(q db.Querier) *PackageRepository {
	return &PackageRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *PackageRepository) WithTx(tx pgx.Tx) *PackageRepository {
	return &PackageRepository{q: tx}
}

func scanPackage(row pgx.Row) (*models.Package, error) {
	pkg := &models.Package{}
	err := row.Scan(
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
		return nil, err
	}
	return pkg, nil
}

// GetByName retrieves a package by case-insensitive (namespace, name).
// The returned row carries the case as stored at first creation.
func (r *PackageRepository) GetByName(ctx context.Context, namespace, name string) (*models.Package, error) {
	query := `SELECT ` + packageColumns + packageJoins + `
		WHERE lower(n.name) = lower($1) AND lower(p.name) = lower($2)`

	pkg, err := scanPackage(r.q.QueryRow(ctx, query, namespace, name))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

// GetByID retrieves a package by id
func (r *PackageRepository) GetByID(ctx context.Context, packageID uuid.UUID) (*models.Package, error) {
	query := `SELECT ` + packageColumns + packageJoins + ` WHERE p.package_id = $1`

	pkg, err := scanPackage(r.q.QueryRow(ctx, query, packageID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

// Create inserts a package row. Creation races are resolved by the unique
// (namespace, lower(name)) index; the loser retries GetByName.
func (r *PackageRepository) Create(ctx context.Context, pkg *models.Package) error {
	query := `
		INSERT INTO packages (package_id, namespace_id, owner_team_id, name,
			is_active, is_deprecated, is_pinned, date_created, date_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		pkg.PackageID,
		pkg.NamespaceID,
		pkg.OwnerTeamID,
		pkg.Name,
		pkg.IsActive,
		pkg.IsDeprecated,
		pkg.IsPinned,
		pkg.DateCreated,
		pkg.DateUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

// SetLatest points the package at its newest active version and bumps
// date_updated. date_updated is monotonically non-decreasing.
func (r *PackageRepository) SetLatest(ctx context.Context, packageID uuid.UUID, versionID uuid.UUID) error {
	query := `
		UPDATE packages
		SET latest_version_id = $2,
			date_updated = GREATEST(date_updated, now())
		WHERE package_id = $1
	`

	if _, err := r.q.Exec(ctx, query, packageID, versionID); err != nil {
		return fmt.Errorf("failed to set latest version: %w", err)
	}
	return nil
}

// SetDeprecated toggles the deprecation flag without touching date_updated
func (r *PackageRepository) SetDeprecated(ctx context.Context, packageID uuid.UUID, deprecated bool) error {
	query := `UPDATE packages SET is_deprecated = $2 WHERE package_id = $1`

	if _, err := r.q.Exec(ctx, query, packageID, deprecated); err != nil {
		return fmt.Errorf("failed to set deprecation: %w", err)
	}
	return nil
}

// LockRow takes a row-level lock on the package for multi-step mutations
func (r *PackageRepository) LockRow(ctx context.Context, tx pgx.Tx, packageID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT 1 FROM packages WHERE package_id = $1 FOR UPDATE`, packageID); err != nil {
		return fmt.Errorf("failed to lock package row: %w", err)
	}
	return nil
}

// TotalUsedDiskSpace sums the archive sizes of every stored version
func (r *PackageRepository) TotalUsedDiskSpace(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(file_size), 0) FROM package_versions`

	var total int64
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum used disk space: %w", err)
	}
	return total, nil
}
