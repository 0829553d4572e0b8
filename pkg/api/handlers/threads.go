package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/models"
	"github.com/plannerhq/vendorbook/pkg/threads"
)

// ThreadHandler handles the thread-to-project linking endpoints.
type ThreadHandler struct {
	service   *threads.Service
	validator *validator.Validate
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(service *threads.Service) *ThreadHandler {
	return &ThreadHandler{
		service:   service,
		validator: validator.New(),
	}
}

// LinkThreadRequest names the project a thread belongs to.
type LinkThreadRequest struct {
	ProjectID int `json:"project_id" validate:"required,min=1"`
}

// NeedsLink handles GET /api/v1/threads/needs-link
func (h *ThreadHandler) NeedsLink(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, offset := parsePagination(c, 20, 100)

	suggestions, total, err := h.service.ListNeedingLink(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"threads": suggestions,
		"total":   total,
		"count":   len(suggestions),
	})
}

// Link handles POST /api/v1/threads/:id/link
func (h *ThreadHandler) Link(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req LinkThreadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	thread, err := h.service.Link(c.Request().Context(), userID, c.Param("id"), req.ProjectID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, thread)
}

// Dismiss handles POST /api/v1/threads/:id/dismiss
func (h *ThreadHandler) Dismiss(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	thread, err := h.service.Dismiss(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, thread)
}
