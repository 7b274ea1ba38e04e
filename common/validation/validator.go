// Package validation implements the archive validator: it turns a completed
// upload into a validated submission payload or a structured set of form
// errors.
package validation

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
)

// Entries larger than this are spooled through a temp file instead of memory
// when promoted into the blob store.
const entrySpoolThreshold = 32 << 20

// SubmissionPayload is the fully validated output of the archive validator.
// Everything the coordinator needs to materialize the package graph in one
// transaction.
type SubmissionPayload struct {
	Manifest  *Manifest
	Readme    string
	Changelog *string

	// Team name with the submitter-provided capitalization
	TeamName string

	Communities []*models.Community
	// Resolved categories keyed by community identifier
	Categories     map[string][]*models.PackageCategory
	HasNsfwContent bool

	IconBlob    *models.Blob
	ArchiveBlob *models.Blob
	ArchiveSize int64

	// Exploded archive entries; VersionID is filled in at creation time
	FileTree []models.FileTreeEntry
}

// Validator runs the ordered validation pipeline over an uploaded archive.
type Validator struct {
	cfg         *config.Config
	store       *blobstore.Store
	teams       *repository.TeamRepository
	packages    *repository.PackageRepository
	versions    *repository.VersionRepository
	communities *repository.CommunityRepository
	log         *logger.Logger
}

// NewValidator creates an archive validator
func NewValidator(
	cfg *config.Config,
	store *blobstore.Store,
	teams *repository.TeamRepository,
	packages *repository.PackageRepository,
	versions *repository.VersionRepository,
	communities *repository.CommunityRepository,
	log *logger.Logger,
) *Validator {
	return &Validator{
		cfg:         cfg,
		store:       store,
		teams:       teams,
		packages:    packages,
		versions:    versions,
		communities: communities,
		log:         log,
	}
}

// ValidateSubmission runs every validation step in order, short-circuiting on
// the first failure, and promotes the archive contents into the blob store.
// file must be a seekable handle over the completed upload's bytes.
func (v *Validator) ValidateSubmission(ctx context.Context, file *os.File, submitter string, meta *models.SubmissionMetadata) (*SubmissionPayload, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	size := info.Size()

	if err := v.checkServerCapacity(ctx, size); err != nil {
		return nil, err
	}

	archive, err := OpenArchive(file, size, v.cfg.Limits)
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(archive.Manifest)
	if err != nil {
		return nil, err
	}

	if err := ValidateIcon(archive.Icon, v.cfg.Limits.IconMaxSize); err != nil {
		return nil, err
	}

	if err := v.checkTeamAuthority(ctx, meta.AuthorName, submitter); err != nil {
		return nil, err
	}

	if err := v.checkVersionUniqueness(ctx, meta.AuthorName, manifest); err != nil {
		return nil, err
	}

	communities, categories, err := v.resolveCommunities(ctx, meta)
	if err != nil {
		return nil, err
	}

	payload := &SubmissionPayload{
		Manifest:       manifest,
		Readme:         string(archive.Readme),
		TeamName:       meta.AuthorName,
		Communities:    communities,
		Categories:     categories,
		HasNsfwContent: meta.HasNsfwContent,
		ArchiveSize:    size,
	}
	if archive.Changelog != nil {
		changelog := string(archive.Changelog)
		payload.Changelog = &changelog
	}

	if err := v.promoteBlobs(ctx, file, archive, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// checkServerCapacity rejects the submission when stored archives plus this
// one would exceed the configured total.
func (v *Validator) checkServerCapacity(ctx context.Context, size int64) error {
	used, err := v.packages.TotalUsedDiskSpace(ctx)
	if err != nil {
		return err
	}
	if used+size > v.cfg.Limits.MaxTotalSize {
		return apierrors.Validation("The server has reached its total storage capacity and cannot accept new packages")
	}
	return nil
}

// checkTeamAuthority verifies that the submitter may publish under the named
// team. A team that does not exist yet is created at commit time with the
// submitter as owner, so absence is not an error here.
func (v *Validator) checkTeamAuthority(ctx context.Context, teamName, submitter string) error {
	if !ValidTeamName(teamName) {
		return apierrors.FieldValidation("author_name", "Author names can only contain a-z A-Z 0-9 _ characters and must not start or end with _")
	}

	team, err := v.teams.GetTeamByName(ctx, teamName)
	if err != nil {
		return err
	}
	if team == nil {
		return nil
	}
	if team.Name != teamName {
		return apierrors.FieldValidation("author_name", "Author name already exists with different capitalization")
	}

	role, err := v.teams.GetMemberRole(ctx, team.TeamID, submitter)
	if err != nil {
		return err
	}
	if role == nil {
		return apierrors.FieldValidation("author_name", "You do not have permission to upload packages under this author name")
	}
	return nil
}

// checkVersionUniqueness enforces both the duplicate version rule and name
// case stability against the existing package graph.
func (v *Validator) checkVersionUniqueness(ctx context.Context, namespace string, manifest *Manifest) error {
	existing, err := v.versions.GetByReference(ctx, namespace, manifest.Name, manifest.VersionNumber)
	if err != nil {
		return err
	}
	if existing != nil {
		return apierrors.Validation("Package of the same namespace, name and version already exists")
	}

	pkg, err := v.packages.GetByName(ctx, namespace, manifest.Name)
	if err != nil {
		return err
	}
	if pkg != nil && pkg.Name != manifest.Name {
		return apierrors.Validation("Package name already exists with different capitalization")
	}
	return nil
}

// resolveCommunities maps community identifiers and category slugs to rows.
// Every category must belong to the community it was attached to.
func (v *Validator) resolveCommunities(ctx context.Context, meta *models.SubmissionMetadata) ([]*models.Community, map[string][]*models.PackageCategory, error) {
	if len(meta.Communities) == 0 {
		return nil, nil, apierrors.FieldValidation("communities", "At least one community is required")
	}

	communities := make([]*models.Community, 0, len(meta.Communities))
	categories := map[string][]*models.PackageCategory{}

	for _, identifier := range meta.Communities {
		community, err := v.communities.GetByIdentifier(ctx, identifier)
		if err != nil {
			return nil, nil, err
		}
		if community == nil {
			return nil, nil, apierrors.FieldValidation("communities", fmt.Sprintf("Community %s does not exist", identifier))
		}
		communities = append(communities, community)

		slugs := meta.Categories[identifier]
		if len(slugs) == 0 {
			continue
		}
		resolved, err := v.communities.GetCategoriesBySlugs(ctx, community.CommunityID, slugs)
		if err != nil {
			return nil, nil, err
		}
		if len(resolved) != len(slugs) {
			found := map[string]bool{}
			for _, cat := range resolved {
				found[cat.Slug] = true
			}
			for _, slug := range slugs {
				if !found[slug] {
					return nil, nil, apierrors.FieldValidation("categories", fmt.Sprintf("Category %s does not exist in community %s", slug, identifier))
				}
			}
		}
		categories[identifier] = resolved
	}

	// Categories attached to a community not in the submission are a
	// consistency error, not silently dropped.
	for identifier := range meta.Categories {
		if _, ok := categories[identifier]; !ok && len(meta.Categories[identifier]) > 0 {
			return nil, nil, apierrors.FieldValidation("categories", fmt.Sprintf("Categories given for community %s which is not a submission target", identifier))
		}
	}

	return communities, categories, nil
}

// promoteBlobs writes the archive, the icon and every file entry into the
// blob store and records the resulting digests on the payload.
func (v *Validator) promoteBlobs(ctx context.Context, file *os.File, archive *Archive, payload *SubmissionPayload) error {
	archiveBlob, err := v.store.Put(ctx, file, "application/zip", "")
	if err != nil {
		return err
	}
	payload.ArchiveBlob = archiveBlob

	iconBlob, err := v.store.Put(ctx, bytes.NewReader(archive.Icon), "image/png", "")
	if err != nil {
		return err
	}
	payload.IconBlob = iconBlob

	for _, entry := range archive.Files {
		blob, err := v.promoteEntry(ctx, entry)
		if err != nil {
			return err
		}
		payload.FileTree = append(payload.FileTree, models.FileTreeEntry{
			Path:       entry.Name,
			BlobDigest: blob.Digest,
			SizeBytes:  blob.SizeBytes,
		})
	}
	return nil
}

func (v *Validator) promoteEntry(ctx context.Context, entry *zip.File) (*models.Blob, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, apierrors.Validation("Corrupted zip file")
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(entry.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if entry.UncompressedSize64 > entrySpoolThreshold {
		return v.promoteLargeEntry(ctx, rc, contentType)
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apierrors.Validation("Corrupted zip file")
	}
	return v.store.Put(ctx, bytes.NewReader(data), contentType, "")
}

func (v *Validator) promoteLargeEntry(ctx context.Context, rc io.Reader, contentType string) (*models.Blob, error) {
	tmp, err := os.CreateTemp("", "archive-entry-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, rc); err != nil {
		return nil, apierrors.Validation("Corrupted zip file")
	}
	return v.store.Put(ctx, tmp, contentType, "")
}
