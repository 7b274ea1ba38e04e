package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/thunderstore/registry/cmd/registry/middleware"
	"github.com/thunderstore/registry/common/bootstrap"
	"github.com/thunderstore/registry/common/models"
	"github.com/thunderstore/registry/common/submission"
)

// SubmissionHandler handles the async submission API
type SubmissionHandler struct {
	components  *bootstrap.Components
	coordinator *submission.Coordinator
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(components *bootstrap.Components, coordinator *submission.Coordinator) *SubmissionHandler {
	return &SubmissionHandler{components: components, coordinator: coordinator}
}

type submissionResponse struct {
	ID         uuid.UUID           `json:"id"`
	Status     string              `json:"status"`
	FormErrors map[string][]string `json:"form_errors,omitempty"`
	TaskError  bool                `json:"task_error"`
	Result     *uuid.UUID          `json:"result,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

func serializeSubmission(sub *models.AsyncSubmission) submissionResponse {
	return submissionResponse{
		ID:         sub.SubmissionID,
		Status:     string(sub.Status),
		FormErrors: sub.FormErrors,
		TaskError:  sub.Status == models.SubmissionTaskError,
		Result:     sub.CreatedVersionID,
		CreatedAt:  sub.CreatedAt,
	}
}

// SubmitAsync registers a new submission for background processing
// POST /submission/submit-async
func (h *SubmissionHandler) SubmitAsync(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	var req submission.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sub, err := h.coordinator.Submit(c.Request().Context(), user, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, serializeSubmission(sub))
}

// Poll returns the submission's current status to its owner
// GET /submission/:id/poll
func (h *SubmissionHandler) Poll(c echo.Context) error {
	user, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid submission id format")
	}

	sub, err := h.coordinator.Poll(c.Request().Context(), user, submissionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, serializeSubmission(sub))
}
