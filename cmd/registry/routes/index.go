package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/container"
	"github.com/thunderstore/registry/cmd/registry/handlers"
)

// RegisterIndexRoutes registers the cached package index routes
func RegisterIndexRoutes(e *echo.Echo, serviceContainer *container.Container) {
	h := handlers.NewIndexHandler(serviceContainer.Components, serviceContainer.CacheReader)

	e.GET("/c/:community/api/v1/package/", h.CommunityPackageList)
	e.GET("/api/experimental/package-index/", h.PackageIndex)
}
