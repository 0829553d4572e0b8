package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/enrichment"
	"github.com/plannerhq/vendorbook/pkg/models"
)

// CandidateHandler handles the candidate review queue endpoints.
type CandidateHandler struct {
	candidates *candidates.Service
	enrichment *enrichment.Service
	validator  *validator.Validate
}

// NewCandidateHandler creates a new candidate handler.
func NewCandidateHandler(candidateService *candidates.Service, enrichmentService *enrichment.Service) *CandidateHandler {
	return &CandidateHandler{
		candidates: candidateService,
		enrichment: enrichmentService,
		validator:  validator.New(),
	}
}

// AcceptCandidateRequest carries the optional overrides applied when
// promoting a candidate to a supplier.
type AcceptCandidateRequest struct {
	Name       string   `json:"name" validate:"max=200"`
	Categories []string `json:"categories" validate:"max=10,dive,max=50"`
	Phone      string   `json:"phone" validate:"max=32"`
	Notes      string   `json:"notes" validate:"max=2000"`
	ProjectID  *int     `json:"project_id,omitempty"`
}

// MergeCandidateRequest names the existing supplier a candidate merges into.
type MergeCandidateRequest struct {
	SupplierID int `json:"supplier_id" validate:"required,min=1"`
}

// BulkCandidateRequest carries the IDs of a bulk accept or dismiss.
type BulkCandidateRequest struct {
	CandidateIDs []string `json:"candidate_ids" validate:"required,min=1,max=100"`
}

// EnrichRequest asks the classifier to score a set of candidates.
type EnrichRequest struct {
	CandidateIDs []string `json:"candidate_ids" validate:"required,min=1,max=100"`
	EventContext string   `json:"event_context" validate:"max=500"`
	ScrapeSites  bool     `json:"scrape_sites"`
}

// List handles GET /api/v1/candidates
func (h *CandidateHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, offset := parsePagination(c, 50, 200)
	filter := candidates.Filter{
		Status:            domain.CandidateStatus(c.QueryParam("status")),
		Relevance:         domain.RelevanceState(c.QueryParam("relevance")),
		Source:            domain.CandidateSource(c.QueryParam("source")),
		Search:            c.QueryParam("search"),
		IncludeIrrelevant: c.QueryParam("include_irrelevant") == "true",
		Limit:             limit,
		Offset:            offset,
	}

	items, total, err := h.candidates.List(c.Request().Context(), userID, filter)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"candidates": items,
		"total":      total,
		"count":      len(items),
	})
}

// Counts handles GET /api/v1/candidates/counts
func (h *CandidateHandler) Counts(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	counts, err := h.candidates.Counts(c.Request().Context(), userID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, counts)
}

// Get handles GET /api/v1/candidates/:id
func (h *CandidateHandler) Get(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	candidate, err := h.candidates.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, candidate)
}

// Accept handles POST /api/v1/candidates/:id/accept
func (h *CandidateHandler) Accept(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req AcceptCandidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	candidate, err := h.candidates.Accept(c.Request().Context(), userID, c.Param("id"), candidates.AcceptInput{
		Name:       req.Name,
		Categories: req.Categories,
		Phone:      req.Phone,
		Notes:      req.Notes,
		ProjectID:  req.ProjectID,
	})
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, candidate)
}

// Dismiss handles POST /api/v1/candidates/:id/dismiss
func (h *CandidateHandler) Dismiss(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	candidate, err := h.candidates.Dismiss(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, candidate)
}

// Merge handles POST /api/v1/candidates/:id/merge
func (h *CandidateHandler) Merge(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req MergeCandidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	candidate, err := h.candidates.Merge(c.Request().Context(), userID, c.Param("id"), req.SupplierID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, candidate)
}

// BulkAccept handles POST /api/v1/candidates/bulk-accept
func (h *CandidateHandler) BulkAccept(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req BulkCandidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	accepted, failed := h.candidates.BulkAccept(c.Request().Context(), userID, req.CandidateIDs)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"accepted": accepted,
		"failed":   failed,
	})
}

// BulkDismiss handles POST /api/v1/candidates/bulk-dismiss
func (h *CandidateHandler) BulkDismiss(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req BulkCandidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	dismissed, failed := h.candidates.BulkDismiss(c.Request().Context(), userID, req.CandidateIDs)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"dismissed": dismissed,
		"failed":    failed,
	})
}

// Enrich handles POST /api/v1/candidates/enrich
func (h *CandidateHandler) Enrich(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req EnrichRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	result, err := h.enrichment.EnrichCandidates(c.Request().Context(), userID, req.CandidateIDs, enrichment.Options{
		EventContext: req.EventContext,
		ScrapeSites:  req.ScrapeSites,
	})
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
