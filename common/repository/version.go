package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

const versionColumns = `
	v.version_id, v.package_id, v.name, v.version_number, v.description,
	v.website_url, v.readme, v.changelog, v.icon_digest, v.file_digest,
	v.file_size, v.downloads, v.format_spec, v.is_active, v.date_created
`

// VersionRepository handles database operations for package versions
type VersionRepository struct {
	q db.Querier
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(q db.Querier) *VersionRepository {
	return &VersionRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *VersionRepository) WithTx(tx pgx.Tx) *VersionRepository {
	return &VersionRepository{q: tx}
}

func scanVersion(row pgx.Row) (*models.PackageVersion, error) {
	v := &models.PackageVersion{}
	err := row.Scan(
		&v.VersionID,
		&v.PackageID,
		&v.Name,
		&v.VersionNumber,
		&v.Description,
		&v.WebsiteURL,
		&v.Readme,
		&v.Changelog,
		&v.IconDigest,
		&v.FileDigest,
		&v.FileSize,
		&v.Downloads,
		&v.FormatSpec,
		&v.IsActive,
		&v.DateCreated,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Create inserts a new package version
func (r *VersionRepository) Create(ctx context.Context, v *models.PackageVersion) error {
	query := `
		INSERT INTO package_versions (version_id, package_id, name, version_number,
			description, website_url, readme, changelog, icon_digest, file_digest,
			file_size, downloads, format_spec, is_active, date_created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.Exec(ctx, query,
		v.VersionID,
		v.PackageID,
		v.Name,
		v.VersionNumber,
		v.Description,
		v.WebsiteURL,
		v.Readme,
		v.Changelog,
		v.IconDigest,
		v.FileDigest,
		v.FileSize,
		v.Downloads,
		v.FormatSpec,
		v.IsActive,
		v.DateCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to create package version: %w", err)
	}
	return nil
}

// GetByReference resolves (namespace, name, version) case-insensitively
func (r *VersionRepository) GetByReference(ctx context.Context, namespace, name, version string) (*models.PackageVersion, error) {
	query := `
		SELECT ` + versionColumns + `, n.name
		FROM package_versions v
		JOIN packages p ON p.package_id = v.package_id
		JOIN namespaces n ON n.namespace_id = p.namespace_id
		WHERE lower(n.name) = lower($1)
			AND lower(v.name) = lower($2)
			AND v.version_number = $3
	`

	v := &models.PackageVersion{}
	err := r.q.QueryRow(ctx, query, namespace, name, version).Scan(
		&v.VersionID,
		&v.PackageID,
		&v.Name,
		&v.VersionNumber,
		&v.Description,
		&v.WebsiteURL,
		&v.Readme,
		&v.Changelog,
		&v.IconDigest,
		&v.FileDigest,
		&v.FileSize,
		&v.Downloads,
		&v.FormatSpec,
		&v.IsActive,
		&v.DateCreated,
		&v.NamespaceName,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version by reference: %w", err)
	}
	return v, nil
}

// GetByID retrieves a version by id
func (r *VersionRepository) GetByID(ctx context.Context, versionID uuid.UUID) (*models.PackageVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM package_versions v WHERE v.version_id = $1`

	v, err := scanVersion(r.q.QueryRow(ctx, query, versionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// ListActiveByPackage returns the package's active versions, newest first by
// component-wise semver ordering.
func (r *VersionRepository) ListActiveByPackage(ctx context.Context, packageID uuid.UUID) ([]*models.PackageVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM package_versions v
		WHERE v.package_id = $1 AND v.is_active
		ORDER BY
			split_part(v.version_number, '.', 1)::int DESC,
			split_part(v.version_number, '.', 2)::int DESC,
			split_part(v.version_number, '.', 3)::int DESC
	`

	rows, err := r.q.Query(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.PackageVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return versions, nil
}

// ListAllActive streams every active version with its namespace, for the
// global package index.
func (r *VersionRepository) ListAllActive(ctx context.Context) ([]*models.PackageVersion, error) {
	query := `
		SELECT ` + versionColumns + `, n.name
		FROM package_versions v
		JOIN packages p ON p.package_id = v.package_id
		JOIN namespaces n ON n.namespace_id = p.namespace_id
		WHERE v.is_active AND p.is_active
		ORDER BY v.date_created
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.PackageVersion
	for rows.Next() {
		v := &models.PackageVersion{}
		err := rows.Scan(
			&v.VersionID,
			&v.PackageID,
			&v.Name,
			&v.VersionNumber,
			&v.Description,
			&v.WebsiteURL,
			&v.Readme,
			&v.Changelog,
			&v.IconDigest,
			&v.FileDigest,
			&v.FileSize,
			&v.Downloads,
			&v.FormatSpec,
			&v.IsActive,
			&v.DateCreated,
			&v.NamespaceName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return versions, nil
}

// AddDependency links a resolved dependency to a version, preserving input
// order via ordinal.
func (r *VersionRepository) AddDependency(ctx context.Context, versionID, dependencyID uuid.UUID, ordinal int) error {
	query := `
		INSERT INTO version_dependencies (version_id, dependency_id, ordinal)
		VALUES ($1, $2, $3)
	`

	if _, err := r.q.Exec(ctx, query, versionID, dependencyID, ordinal); err != nil {
		return fmt.Errorf("failed to add dependency: %w", err)
	}
	return nil
}

// ListDependencyNames returns full reference strings of a version's
// dependencies in input order.
func (r *VersionRepository) ListDependencyNames(ctx context.Context, versionID uuid.UUID) ([]string, error) {
	query := `
		SELECT n.name || '-' || v.name || '-' || v.version_number
		FROM version_dependencies d
		JOIN package_versions v ON v.version_id = d.dependency_id
		JOIN packages p ON p.package_id = v.package_id
		JOIN namespaces n ON n.namespace_id = p.namespace_id
		WHERE d.version_id = $1
		ORDER BY d.ordinal
	`

	rows, err := r.q.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dependency name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return names, nil
}

// AddInstaller records a manifest installer identifier
func (r *VersionRepository) AddInstaller(ctx context.Context, versionID uuid.UUID, identifier string) error {
	query := `
		INSERT INTO version_installers (version_id, identifier)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, versionID, identifier); err != nil {
		return fmt.Errorf("failed to add installer: %w", err)
	}
	return nil
}

// AddFileTreeEntry records one exploded archive entry
func (r *VersionRepository) AddFileTreeEntry(ctx context.Context, entry *models.FileTreeEntry) error {
	query := `
		INSERT INTO file_tree_entries (version_id, path, blob_digest, size_bytes)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.q.Exec(ctx, query, entry.VersionID, entry.Path, entry.BlobDigest, entry.SizeBytes); err != nil {
		return fmt.Errorf("failed to add file tree entry: %w", err)
	}
	return nil
}

// IncrementDownloads bumps the download counter with a single-row update.
// No row lock contention; a lost increment is acceptable.
func (r *VersionRepository) IncrementDownloads(ctx context.Context, versionID uuid.UUID) error {
	query := `UPDATE package_versions SET downloads = downloads + 1 WHERE version_id = $1`

	if _, err := r.q.Exec(ctx, query, versionID); err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	return nil
}

// SetActive toggles a version's active flag. Deactivation is the only
// removal path for visible versions.
func (r *VersionRepository) SetActive(ctx context.Context, versionID uuid.UUID, active bool) error {
	query := `UPDATE package_versions SET is_active = $2 WHERE version_id = $1`

	if _, err := r.q.Exec(ctx, query, versionID, active); err != nil {
		return fmt.Errorf("failed to set version active flag: %w", err)
	}
	return nil
}
