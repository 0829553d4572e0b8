package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/export"
	"github.com/plannerhq/vendorbook/pkg/metrics"
	"github.com/plannerhq/vendorbook/pkg/models"
)

// ExportHandler handles export endpoints. The export kind comes from
// the route; the body only carries format and filters.
type ExportHandler struct {
	service   *export.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewExportHandler creates a new export handler. m may be nil.
func NewExportHandler(service *export.Service, m *metrics.Metrics) *ExportHandler {
	return &ExportHandler{
		service:   service,
		metrics:   m,
		validator: validator.New(),
	}
}

// CreateExportRequest configures one export. Format defaults to csv.
type CreateExportRequest struct {
	Format            string `json:"format" validate:"omitempty,oneof=csv xlsx"`
	MaxRows           int    `json:"max_rows" validate:"omitempty,min=1,max=10000"`
	Status            string `json:"status" validate:"omitempty,oneof=new accepted dismissed merged"`
	Search            string `json:"search" validate:"max=200"`
	IncludeIrrelevant bool   `json:"include_irrelevant"`
}

// CreateCandidates handles POST /api/v1/exports/candidates
func (h *ExportHandler) CreateCandidates(c echo.Context) error {
	return h.create(c, export.KindCandidates)
}

// CreateSuppliers handles POST /api/v1/exports/suppliers
func (h *ExportHandler) CreateSuppliers(c echo.Context) error {
	return h.create(c, export.KindSuppliers)
}

func (h *ExportHandler) create(c echo.Context, kind string) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	var req CreateExportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	format := req.Format
	if format == "" {
		format = export.FormatCSV
	}

	rec, err := h.service.Create(c.Request().Context(), userID, export.CreateInput{
		Kind:              kind,
		Format:            format,
		MaxRows:           req.MaxRows,
		Status:            domain.CandidateStatus(req.Status),
		Search:            req.Search,
		IncludeIrrelevant: req.IncludeIrrelevant,
	})
	if err != nil {
		return apierrors.Domain(c, err)
	}
	h.metrics.RecordExportCreated(kind)

	return c.JSON(http.StatusCreated, rec)
}

// List handles GET /api/v1/exports
func (h *ExportHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	records, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"exports": records,
		"count":   len(records),
	})
}

// Get handles GET /api/v1/exports/:id
func (h *ExportHandler) Get(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	rec, err := h.service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, rec)
}

// Download handles GET /api/v1/exports/:id/download
func (h *ExportHandler) Download(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	filePath, err := h.service.FilePath(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return apierrors.Domain(c, err)
	}

	filename := filepath.Base(filePath)
	c.Response().Header().Set("Content-Disposition", "attachment; filename="+filename)
	c.Response().Header().Set("Content-Type", "application/octet-stream")

	return c.File(filePath)
}
