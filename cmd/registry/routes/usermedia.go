package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/container"
	"github.com/thunderstore/registry/cmd/registry/handlers"
)

// RegisterUsermediaRoutes registers the multipart upload routes
func RegisterUsermediaRoutes(e *echo.Echo, serviceContainer *container.Container) {
	h := handlers.NewUsermediaHandler(serviceContainer.Components, serviceContainer.Broker)

	uploads := e.Group("/api/experimental/usermedia")
	{
		uploads.POST("/initiate-upload/", h.InitiateUpload)
		uploads.POST("/:upload_id/create-part-upload-urls/", h.CreatePartUploadURLs)
		uploads.POST("/:upload_id/finish-upload/", h.FinishUpload)
		uploads.POST("/:upload_id/abort-upload/", h.AbortUpload)
	}

	// Unprefixed aliases of the same operations
	aliases := e.Group("/usermedia")
	{
		aliases.POST("/initiate-upload", h.InitiateUpload)
		aliases.POST("/:upload_id/create-part-upload-urls", h.CreatePartUploadURLs)
		aliases.POST("/:upload_id/finish-upload", h.FinishUpload)
		aliases.POST("/:upload_id/abort-upload", h.AbortUpload)
	}
}
