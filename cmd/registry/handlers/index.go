package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/common/apicache"
	"github.com/thunderstore/registry/common/apierrors"
	"github.com/thunderstore/registry/common/bootstrap"
	"github.com/thunderstore/registry/common/models"
)

// IndexHandler serves the cached public package indexes
type IndexHandler struct {
	components *bootstrap.Components
	reader     *apicache.Reader
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(components *bootstrap.Components, reader *apicache.Reader) *IndexHandler {
	return &IndexHandler{components: components, reader: reader}
}

// CommunityPackageList serves the community's v1 package list
// GET /c/:community/api/v1/package/
func (h *IndexHandler) CommunityPackageList(c echo.Context) error {
	return h.serveArtifact(c, c.Param("community"), models.CacheKindPackageListV1)
}

// PackageIndex serves the global newline-delimited package index
// GET /api/experimental/package-index/
func (h *IndexHandler) PackageIndex(c echo.Context) error {
	return h.serveArtifact(c, "", models.CacheKindGlobalPackageIndex)
}

func (h *IndexHandler) serveArtifact(c echo.Context, community string, kind models.CacheKind) error {
	var ifModifiedSince *time.Time
	if header := c.Request().Header.Get("If-Modified-Since"); header != "" {
		if parsed, err := http.ParseTime(header); err == nil {
			ifModifiedSince = &parsed
		}
	}

	artifact, notModified, err := h.reader.Serve(c.Request().Context(), community, kind, ifModifiedSince)
	if err != nil {
		if apierrors.Unavailable.Has(err) {
			c.Response().Header().Set("Retry-After", "60")
		}
		return writeError(c, err)
	}

	c.Response().Header().Set("Last-Modified", artifact.LastModified.UTC().Format(http.TimeFormat))
	if notModified {
		return c.NoContent(http.StatusNotModified)
	}
	defer artifact.Body.Close()

	c.Response().Header().Set("Content-Encoding", "gzip")
	return c.Stream(http.StatusOK, "application/json", artifact.Body)
}
