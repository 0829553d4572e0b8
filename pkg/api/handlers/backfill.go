// Package handlers wires the pipeline services to the echo HTTP
// surface. Every handler reads the owner from the JWT context set by
// the auth middleware; cross-owner access fails inside the services.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/backfill"
	"github.com/plannerhq/vendorbook/pkg/models"
)

// BackfillHandler handles backfill run endpoints.
type BackfillHandler struct {
	service   *backfill.Service
	validator *validator.Validate
}

// NewBackfillHandler creates a new backfill handler.
func NewBackfillHandler(service *backfill.Service) *BackfillHandler {
	return &BackfillHandler{
		service:   service,
		validator: validator.New(),
	}
}

// StartBackfillRequest represents a request to start a mailbox scan.
type StartBackfillRequest struct {
	TimeframeMonths int    `json:"timeframe_months" validate:"required,min=1,max=36"`
	EventContext    string `json:"event_context" validate:"max=500"`
}

// Start handles POST /api/v1/backfill/runs
func (h *BackfillHandler) Start(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req StartBackfillRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	run, err := h.service.Start(c.Request().Context(), userID, backfill.StartInput{
		TimeframeMonths: req.TimeframeMonths,
		EventContext:    req.EventContext,
	})
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusCreated, run)
}

// List handles GET /api/v1/backfill/runs
func (h *BackfillHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, offset := parsePagination(c, 20, 100)

	runs, total, err := h.service.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": total,
		"count": len(runs),
	})
}

// Get handles GET /api/v1/backfill/runs/:id
func (h *BackfillHandler) Get(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	run, err := h.service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, run)
}

// Tick handles POST /api/v1/backfill/runs/:id/tick
//
// Ticks normally arrive from the cron driver; this endpoint lets an
// owner push their own run forward without waiting for the schedule.
func (h *BackfillHandler) Tick(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	runID := c.Param("id")

	// Ownership check before the tick, which itself is owner-blind.
	if _, err := h.service.Get(c.Request().Context(), userID, runID); err != nil {
		return apierrors.Domain(c, err)
	}

	res, err := h.service.Tick(c.Request().Context(), runID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run":       res.Run,
		"done":      res.Done,
		"processed": res.Processed,
	})
}

// Cancel handles POST /api/v1/backfill/runs/:id/cancel
func (h *BackfillHandler) Cancel(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	run, err := h.service.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, run)
}

// parsePagination reads limit/offset query params with a default and
// cap on limit.
func parsePagination(c echo.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxLimit {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
