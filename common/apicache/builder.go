// Package apicache builds and serves the derived public API artifacts: the
// per-community v1 package list and the global newline-delimited package
// index, both stored as gzipped blobs.
package apicache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/repository"
)

// Builder renders cache artifacts from the package graph.
type Builder struct {
	db          *db.DB
	cfg         *config.Config
	store       *blobstore.Store
	cacheBlobs  *repository.CacheBlobRepository
	listings    *repository.ListingRepository
	versions    *repository.VersionRepository
	communities *repository.CommunityRepository
	log         *logger.Logger
}

// NewBuilder creates a cache builder
func NewBuilder(
	database *db.DB,
	cfg *config.Config,
	store *blobstore.Store,
	cacheBlobs *repository.CacheBlobRepository,
	listings *repository.ListingRepository,
	versions *repository.VersionRepository,
	communities *repository.CommunityRepository,
	log *logger.Logger,
) *Builder {
	return &Builder{
		db:          database,
		cfg:         cfg,
		store:       store,
		cacheBlobs:  cacheBlobs,
		listings:    listings,
		versions:    versions,
		communities: communities,
		log:         log,
	}
}

// RebuildCommunity renders the community's v1 package list and commits it as
// a new cache artifact.
func (b *Builder) RebuildCommunity(ctx context.Context, identifier string) error {
	log := b.log.WithCommunity(identifier)

	community, err := b.communities.GetByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if community == nil {
		log.Warn("cache rebuild for unknown community, skipping")
		return nil
	}

	entries, err := b.renderPackageList(ctx, community)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("serialize package list: %w", err)
	}

	written, err := b.commitArtifact(ctx, identifier, models.CacheKindPackageListV1, data)
	if err != nil {
		return err
	}
	if written {
		log.Info("community package list rebuilt", "packages", len(entries))
	}
	return nil
}

// RebuildIndex renders the global newline-delimited package index.
func (b *Builder) RebuildIndex(ctx context.Context) error {
	versions, err := b.versions.ListAllActive(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range versions {
		deps, err := b.versions.ListDependencyNames(ctx, v.VersionID)
		if err != nil {
			return err
		}
		if deps == nil {
			deps = []string{}
		}
		entry := IndexEntry{
			Namespace:     v.NamespaceName,
			Name:          v.Name,
			VersionNumber: v.VersionNumber,
			FileFormat:    v.FormatSpec,
			FileSize:      v.FileSize,
			Dependencies:  deps,
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("serialize index entry: %w", err)
		}
	}

	written, err := b.commitArtifact(ctx, "", models.CacheKindGlobalPackageIndex, buf.Bytes())
	if err != nil {
		return err
	}
	if written {
		b.log.Info("global package index rebuilt", "versions", len(versions))
	}
	return nil
}

// RebuildAll rebuilds every community list plus the global index. Used by the
// periodic timer as a catch-all behind the event-driven rebuilds.
func (b *Builder) RebuildAll(ctx context.Context) error {
	identifiers, err := b.communities.ListIdentifiers(ctx)
	if err != nil {
		return err
	}
	for _, identifier := range identifiers {
		if err := b.RebuildCommunity(ctx, identifier); err != nil {
			b.log.Error("community cache rebuild failed", "community", identifier, "error", err)
		}
	}
	return b.RebuildIndex(ctx)
}

func (b *Builder) renderPackageList(ctx context.Context, community *models.Community) ([]PackageListingV1, error) {
	visible, err := b.listings.ListPubliclyVisible(ctx, community.CommunityID)
	if err != nil {
		return nil, err
	}

	baseURL := b.cfg.Service.BaseURL
	entries := make([]PackageListingV1, 0, len(visible))

	for _, row := range visible {
		pkg := row.Package

		categories, err := b.listings.ListCategoryNames(ctx, row.Listing.ListingID)
		if err != nil {
			return nil, err
		}

		versions, err := b.versions.ListActiveByPackage(ctx, pkg.PackageID)
		if err != nil {
			return nil, err
		}

		serialized := make([]PackageVersionV1, 0, len(versions))
		for _, v := range versions {
			deps, err := b.versions.ListDependencyNames(ctx, v.VersionID)
			if err != nil {
				return nil, err
			}
			serialized = append(serialized, serializeVersion(baseURL, pkg, v, deps))
		}

		entries = append(entries, PackageListingV1{
			Name:           pkg.Name,
			FullName:       pkg.FullName(),
			Owner:          pkg.OwnerName,
			PackageURL:     packageURL(baseURL, community.Identifier, pkg.NamespaceName, pkg.Name),
			DateCreated:    pkg.DateCreated,
			DateUpdated:    pkg.DateUpdated,
			UUID4:          pkg.PackageID.String(),
			RatingScore:    0,
			IsPinned:       pkg.IsPinned,
			IsDeprecated:   pkg.IsDeprecated,
			HasNsfwContent: row.Listing.HasNsfwContent,
			Categories:     categories,
			Versions:       serialized,
		})
	}
	return entries, nil
}

// commitArtifact gzips the rendered bytes, stores them as a blob and inserts
// the cache row. Writers for the same (community, kind) serialize on an
// advisory lock; a held lock means another writer is already committing a
// fresher artifact, so the write is skipped. Superseded rows are garbage
// collected afterwards in their own transaction.
func (b *Builder) commitArtifact(ctx context.Context, community string, kind models.CacheKind, data []byte) (bool, error) {
	var gzipped bytes.Buffer
	gz := gzip.NewWriter(&gzipped)
	if _, err := gz.Write(data); err != nil {
		return false, fmt.Errorf("gzip artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		return false, fmt.Errorf("gzip artifact: %w", err)
	}

	written := false
	err := b.db.InTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		lockKey := db.LockKey("cache", community+":"+string(kind))
		acquired, err := db.TryAdvisoryXactLock(txCtx, tx, lockKey)
		if err != nil {
			return err
		}
		if !acquired {
			return nil
		}

		blob, err := b.store.Put(txCtx, bytes.NewReader(gzipped.Bytes()), "application/json", "gzip")
		if err != nil {
			return err
		}

		written = true
		return b.cacheBlobs.WithTx(tx).Insert(txCtx, &models.CacheBlob{
			CacheID:      blobstore.NewCacheID(),
			Community:    community,
			Kind:         kind,
			BlobDigest:   blob.Digest,
			LastModified: time.Now().UTC(),
		})
	})
	if err != nil || !written {
		return written, err
	}

	if err := b.collectGarbage(ctx, community, kind); err != nil {
		b.log.Warn("cache garbage collection failed", "community", community, "kind", kind, "error", err)
	}
	return true, nil
}

// collectGarbage drops superseded cache rows and reclaims blobs no longer
// referenced by any cache row.
func (b *Builder) collectGarbage(ctx context.Context, community string, kind models.CacheKind) error {
	stale, err := b.cacheBlobs.DeleteSuperseded(ctx, community, kind, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, digest := range stale {
		referenced, err := b.cacheBlobs.IsDigestReferenced(ctx, digest)
		if err != nil {
			return err
		}
		if referenced {
			continue
		}
		if err := b.store.Delete(ctx, digest); err != nil {
			b.log.Warn("stale cache blob delete failed", "digest", digest, "error", err)
		}
	}
	return nil
}
