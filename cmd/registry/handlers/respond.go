package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/common/apierrors"
)

// writeError translates service errors into the wire format: validation
// errors become 400 with the field map, everything else becomes
// {"detail": ...} with the mapped status. Internal errors never leak their
// message.
func writeError(c echo.Context, err error) error {
	if v, ok := apierrors.AsValidation(err); ok {
		return c.JSON(http.StatusBadRequest, v.Fields)
	}

	status := apierrors.HTTPStatus(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}
	return c.JSON(status, map[string]string{"detail": detail})
}
