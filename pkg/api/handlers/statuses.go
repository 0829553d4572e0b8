package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/models"
	"github.com/plannerhq/vendorbook/pkg/signals"
)

// StatusHandler handles the status catalog endpoints.
type StatusHandler struct {
	service   *signals.Service
	validator *validator.Validate
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(service *signals.Service) *StatusHandler {
	return &StatusHandler{
		service:   service,
		validator: validator.New(),
	}
}

// SetStatusEnabledRequest toggles a catalog status for the owner.
// Enabled is a pointer so an explicit false survives validation.
type SetStatusEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// List handles GET /api/v1/statuses
//
// Returns the full catalog in pipeline order with the owner's
// enable/disable overrides applied.
func (h *StatusHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	defs, err := h.service.Effective(c.Request().Context(), userID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"statuses": defs,
		"count":    len(defs),
	})
}

// SetEnabled handles PUT /api/v1/statuses/:slug/enabled
func (h *StatusHandler) SetEnabled(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req SetStatusEnabledRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	def, err := h.service.SetEnabled(c.Request().Context(), userID, c.Param("slug"), *req.Enabled)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, def)
}
