package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/middleware"
	"github.com/thunderstore/registry/common/bootstrap"
	"github.com/thunderstore/registry/common/storage"
	"github.com/thunderstore/registry/common/usermedia"
)

// UsermediaHandler handles the multipart upload API
type UsermediaHandler struct {
	components *bootstrap.Components
	broker     *usermedia.Broker
}

// NewUsermediaHandler creates a new usermedia handler
func NewUsermediaHandler(components *bootstrap.Components, broker *usermedia.Broker) *UsermediaHandler {
	return &UsermediaHandler{components: components, broker: broker}
}

type initiateUploadRequest struct {
	Filename      string `json:"filename"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

type uploadResponse struct {
	UploadID  uuid.UUID  `json:"upload_id"`
	Filename  string     `json:"filename"`
	SizeBytes int64      `json:"size_bytes"`
	Status    string     `json:"status"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

// InitiateUpload opens a new multipart upload
// POST /usermedia/initiate-upload
func (h *UsermediaHandler) InitiateUpload(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	var req initiateUploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	upload, err := h.broker.CreateUpload(c.Request().Context(), user, req.Filename, req.FileSizeBytes)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, uploadResponse{
		UploadID:  upload.UploadID,
		Filename:  upload.Filename,
		SizeBytes: upload.SizeBytes,
		Status:    string(upload.Status),
		Expiry:    upload.Expiry,
	})
}

type partURLsRequest struct {
	// Optional; when provided it must match the declared size
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// CreatePartUploadURLs issues presigned URLs for every part
// POST /usermedia/:upload_id/create-part-upload-urls
func (h *UsermediaHandler) CreatePartUploadURLs(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	uploadID, err := uuid.Parse(c.Param("upload_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload_id format")
	}

	var req partURLsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	urls, err := h.broker.PartURLs(c.Request().Context(), user, uploadID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"part_size":   h.components.Config.Limits.UploadPartSize,
		"upload_urls": urls,
	})
}

type finishUploadRequest struct {
	Parts []struct {
		PartNumber int    `json:"part_number"`
		ETag       string `json:"etag"`
	} `json:"parts"`
}

// FinishUpload completes the multipart upload
// POST /usermedia/:upload_id/finish-upload
func (h *UsermediaHandler) FinishUpload(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	uploadID, err := uuid.Parse(c.Param("upload_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload_id format")
	}

	var req finishUploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	parts := make([]storage.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, storage.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	upload, err := h.broker.Finalize(c.Request().Context(), user, uploadID, parts)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, uploadResponse{
		UploadID:  upload.UploadID,
		Filename:  upload.Filename,
		SizeBytes: upload.SizeBytes,
		Status:    string(upload.Status),
		Expiry:    upload.Expiry,
	})
}

// AbortUpload cancels the multipart upload
// POST /usermedia/:upload_id/abort-upload
func (h *UsermediaHandler) AbortUpload(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	uploadID, err := uuid.Parse(c.Param("upload_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload_id format")
	}

	if err := h.broker.Abort(c.Request().Context(), user, uploadID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
