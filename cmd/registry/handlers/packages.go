package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/middleware"
	"github.com/thunderstore/registry/common/blobstore"
	"github.com/thunderstore/registry/common/bootstrap"
	"github.com/thunderstore/registry/common/packages"
	"github.com/thunderstore/registry/common/queue"
	"github.com/thunderstore/registry/common/repository"
)

// PackageHandler handles package management and download endpoints
type PackageHandler struct {
	components *bootstrap.Components
	graph      *packages.Graph
	versions   *repository.VersionRepository
	store      *blobstore.Store
}

// NewPackageHandler creates a new package handler
func NewPackageHandler(components *bootstrap.Components, graph *packages.Graph, versions *repository.VersionRepository, store *blobstore.Store) *PackageHandler {
	return &PackageHandler{components: components, graph: graph, versions: versions, store: store}
}

// Deprecate marks every version listing of the package as deprecated
// POST /api/v1/package/:namespace/:name/deprecate
func (h *PackageHandler) Deprecate(c echo.Context) error {
	return h.setDeprecated(c, true)
}

// Undeprecate clears the package's deprecation flag
// POST /api/v1/package/:namespace/:name/undeprecate
func (h *PackageHandler) Undeprecate(c echo.Context) error {
	return h.setDeprecated(c, false)
}

func (h *PackageHandler) setDeprecated(c echo.Context, deprecated bool) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	namespace := c.Param("namespace")
	name := c.Param("name")

	var communities []string
	if deprecated {
		communities, err = h.graph.Deprecate(c.Request().Context(), namespace, name, user)
	} else {
		communities, err = h.graph.Undeprecate(c.Request().Context(), namespace, name, user)
	}
	if err != nil {
		return writeError(c, err)
	}

	h.enqueueRebuilds(c, communities)
	return c.JSON(http.StatusOK, map[string]bool{"is_deprecated": deprecated})
}

// ApproveListing sets the listing's review status to approved
// POST /api/v1/listing/:id/approve
func (h *PackageHandler) ApproveListing(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id format")
	}

	community, err := h.graph.ApproveListing(c.Request().Context(), listingID, user)
	if err != nil {
		return writeError(c, err)
	}

	h.enqueueRebuilds(c, []string{community})
	return c.JSON(http.StatusOK, map[string]string{"review_status": "approved"})
}

type rejectListingRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

// RejectListing sets the listing's review status to rejected
// POST /api/v1/listing/:id/reject
func (h *PackageHandler) RejectListing(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id format")
	}

	var req rejectListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	community, err := h.graph.RejectListing(c.Request().Context(), listingID, user, req.RejectionReason)
	if err != nil {
		return writeError(c, err)
	}

	h.enqueueRebuilds(c, []string{community})
	return c.JSON(http.StatusOK, map[string]string{"review_status": "rejected"})
}

type updateCategoriesRequest struct {
	Categories []string `json:"categories"`
}

// UpdateListingCategories replaces the listing's category set
// POST /api/v1/listing/:id/update-categories
func (h *PackageHandler) UpdateListingCategories(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id format")
	}

	var req updateCategoriesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	community, err := h.graph.UpdateListingCategories(c.Request().Context(), listingID, user, req.Categories)
	if err != nil {
		return writeError(c, err)
	}

	h.enqueueRebuilds(c, []string{community})
	return c.JSON(http.StatusOK, map[string][]string{"categories": req.Categories})
}

// Download streams the version archive and counts the download
// GET /package/download/:namespace/:name/:version/
func (h *PackageHandler) Download(c echo.Context) error {
	namespace := c.Param("namespace")
	name := c.Param("name")
	versionNumber := c.Param("version")

	version, err := h.versions.GetByReference(c.Request().Context(), namespace, name, versionNumber)
	if err != nil {
		return writeError(c, err)
	}
	if version == nil || !version.IsActive {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "not found"})
	}

	blob, body, err := h.store.Open(c.Request().Context(), version.FileDigest)
	if err != nil {
		return writeError(c, err)
	}
	defer body.Close()

	if err := h.graph.IncrementDownload(c.Request().Context(), version.VersionID); err != nil {
		h.components.Logger.Error("failed to count download", "version_id", version.VersionID, "error", err)
	}

	filename := fmt.Sprintf("%s-%s-%s.zip", namespace, name, versionNumber)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().Header().Set("Content-Length", fmt.Sprintf("%d", blob.SizeBytes))
	return c.Stream(http.StatusOK, "application/zip", body)
}

// ServeBlob streams a stored blob by digest, used for icons
// GET /blobs/:filename
func (h *PackageHandler) ServeBlob(c echo.Context) error {
	digest := strings.TrimSuffix(c.Param("filename"), ".png")
	if digest == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blob reference")
	}

	blob, body, err := h.store.Open(c.Request().Context(), digest)
	if err != nil {
		return writeError(c, err)
	}
	defer body.Close()

	if blob.ContentEncoding != "" {
		c.Response().Header().Set("Content-Encoding", blob.ContentEncoding)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400, immutable")
	return c.Stream(http.StatusOK, blob.ContentType, body)
}

// enqueueRebuilds schedules cache rebuilds for the affected communities plus
// the global index. Failures are logged, not surfaced: the periodic rebuild
// catches up.
func (h *PackageHandler) enqueueRebuilds(c echo.Context, communities []string) {
	ctx := c.Request().Context()
	for _, community := range communities {
		if err := h.components.Queue.Enqueue(ctx, queue.Task{Kind: queue.KindRebuildCommunity, Community: community}); err != nil {
			h.components.Logger.Error("failed to enqueue community rebuild", "community", community, "error", err)
		}
	}
	if err := h.components.Queue.Enqueue(ctx, queue.Task{Kind: queue.KindRebuildIndex}); err != nil {
		h.components.Logger.Error("failed to enqueue index rebuild", "error", err)
	}
}
