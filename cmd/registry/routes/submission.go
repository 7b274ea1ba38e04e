package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/container"
	"github.com/thunderstore/registry/cmd/registry/handlers"
)

// RegisterSubmissionRoutes registers the async submission routes
func RegisterSubmissionRoutes(e *echo.Echo, serviceContainer *container.Container) {
	h := handlers.NewSubmissionHandler(serviceContainer.Components, serviceContainer.Coordinator)

	submissions := e.Group("/api/experimental/submission")
	{
		submissions.POST("/submit-async/", h.SubmitAsync)
		submissions.GET("/:id/poll-async/", h.Poll)
	}

	// Unprefixed aliases of the same operations
	aliases := e.Group("/submission")
	{
		aliases.POST("/submit-async", h.SubmitAsync)
		aliases.GET("/:id/poll", h.Poll)
	}
}
