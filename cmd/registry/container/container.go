package container

import (
	"github.com/thunderstore/registry/common/apicache"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/bootstrap"
	"github.com/thunderstore/registry/common/packages"
	"github.com/thunderstore/registry/common/repository"
	"github.com/thunderstore/registry/common/submission"
	"github.com/thunderstore/registry/common/usermedia"
	"github.com/thunderstore/registry/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	BlobRepo       *repository.BlobRepository
	UploadRepo     *repository.UploadRepository
	TeamRepo       *repository.TeamRepository
	PackageRepo    *repository.PackageRepository
	VersionRepo    *repository.VersionRepository
	CommunityRepo  *repository.CommunityRepository
	ListingRepo    *repository.ListingRepository
	SubmissionRepo *repository.SubmissionRepository
	CacheBlobRepo  *repository.CacheBlobRepository

	// Services
	BlobStore    *blobstore.Store
	Broker       *usermedia.Broker
	Validator    *validation.Validator
	Resolver     *packages.Resolver
	Graph        *packages.Graph
	Coordinator  *submission.Coordinator
	CacheBuilder *apicache.Builder
	CacheReader  *apicache.Reader
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	// Initialize repositories
	blobRepo := repository.NewBlobRepository(components.DB)
	uploadRepo := repository.NewUploadRepository(components.DB)
	teamRepo := repository.NewTeamRepository(components.DB)
	packageRepo := repository.NewPackageRepository(components.DB)
	versionRepo := repository.NewVersionRepository(components.DB)
	communityRepo := repository.NewCommunityRepository(components.DB)
	listingRepo := repository.NewListingRepository(components.DB)
	submissionRepo := repository.NewSubmissionRepository(components.DB)
	cacheBlobRepo := repository.NewCacheBlobRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	blobStore := blobstore.New(components.DB, blobRepo, components.Storage, components.Logger)
	broker := usermedia.NewBroker(uploadRepo, components.Storage, components.Config, components.Logger)
	validator := validation.NewValidator(
		components.Config,
		blobStore,
		teamRepo,
		packageRepo,
		versionRepo,
		communityRepo,
		components.Logger,
	)
	resolver := packages.NewResolver(versionRepo, components.Config.Limits.MaxDependencies)
	graph := packages.NewGraph(
		components.DB,
		teamRepo,
		packageRepo,
		versionRepo,
		listingRepo,
		communityRepo,
		components.Logger,
	)
	coordinator := submission.NewCoordinator(
		components.DB,
		components.Config,
		components.Redis,
		components.Queue,
		submissionRepo,
		uploadRepo,
		broker,
		validator,
		resolver,
		graph,
		components.Logger,
	)
	cacheBuilder := apicache.NewBuilder(
		components.DB,
		components.Config,
		blobStore,
		cacheBlobRepo,
		listingRepo,
		versionRepo,
		communityRepo,
		components.Logger,
	)
	cacheReader := apicache.NewReader(cacheBlobRepo, blobStore, components.Logger)

	return &Container{
		Components:     components,
		BlobRepo:       blobRepo,
		UploadRepo:     uploadRepo,
		TeamRepo:       teamRepo,
		PackageRepo:    packageRepo,
		VersionRepo:    versionRepo,
		CommunityRepo:  communityRepo,
		ListingRepo:    listingRepo,
		SubmissionRepo: submissionRepo,
		CacheBlobRepo:  cacheBlobRepo,
		BlobStore:      blobStore,
		Broker:         broker,
		Validator:      validator,
		Resolver:       resolver,
		Graph:          graph,
		Coordinator:    coordinator,
		CacheBuilder:   cacheBuilder,
		CacheReader:    cacheReader,
	}, nil
}
