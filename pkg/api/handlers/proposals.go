package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/metrics"
	"github.com/plannerhq/vendorbook/pkg/models"
	"github.com/plannerhq/vendorbook/pkg/proposals"
)

// ProposalHandler handles status proposal endpoints.
type ProposalHandler struct {
	service   *proposals.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewProposalHandler creates a new proposal handler. m may be nil.
func NewProposalHandler(service *proposals.Service, m *metrics.Metrics) *ProposalHandler {
	return &ProposalHandler{
		service:   service,
		metrics:   m,
		validator: validator.New(),
	}
}

// ResolveProposalRequest accepts or rejects a pending proposal.
type ResolveProposalRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// List handles GET /api/v1/proposals
func (h *ProposalHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	pending, err := h.service.ListPending(c.Request().Context(), userID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"proposals": pending,
		"count":     len(pending),
	})
}

// Resolve handles POST /api/v1/proposals/:id/resolve
//
// Resolving an already resolved or expired proposal answers 409 with
// the stale_proposal code; nothing is mutated twice.
func (h *ProposalHandler) Resolve(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req ResolveProposalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	proposal, err := h.service.Resolve(c.Request().Context(), userID, c.Param("id"), req.Action)
	if err != nil {
		return apierrors.Domain(c, err)
	}
	h.metrics.RecordProposalResolved(req.Action)

	return c.JSON(http.StatusOK, proposal)
}
