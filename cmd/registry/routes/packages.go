package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/container"
	"github.com/thunderstore/registry/cmd/registry/handlers"
)

// RegisterPackageRoutes registers management, moderation and download routes
func RegisterPackageRoutes(e *echo.Echo, serviceContainer *container.Container) {
	h := handlers.NewPackageHandler(
		serviceContainer.Components,
		serviceContainer.Graph,
		serviceContainer.VersionRepo,
		serviceContainer.BlobStore,
	)

	pkg := e.Group("/api/v1/package/:namespace/:name")
	{
		pkg.POST("/deprecate/", h.Deprecate)
		pkg.POST("/undeprecate/", h.Undeprecate)
	}

	listing := e.Group("/api/v1/listing/:id")
	{
		listing.POST("/approve/", h.ApproveListing)
		listing.POST("/reject/", h.RejectListing)
		listing.POST("/update-categories/", h.UpdateListingCategories)
	}

	e.GET("/package/download/:namespace/:name/:version/", h.Download)
	e.GET("/blobs/:filename", h.ServeBlob)
}
