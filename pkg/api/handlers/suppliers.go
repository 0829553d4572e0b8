package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/models"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

// SupplierHandler handles the supplier directory read endpoints.
// Suppliers are created through candidate acceptance, not directly.
type SupplierHandler struct {
	service *suppliers.Service
}

// NewSupplierHandler creates a new supplier handler.
func NewSupplierHandler(service *suppliers.Service) *SupplierHandler {
	return &SupplierHandler{
		service: service,
	}
}

// List handles GET /api/v1/suppliers
func (h *SupplierHandler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	limit, offset := parsePagination(c, 50, 200)

	items, total, err := h.service.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"suppliers": items,
		"total":     total,
		"count":     len(items),
	})
}

// Get handles GET /api/v1/suppliers/:id
func (h *SupplierHandler) Get(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c)
	}

	supplierID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Supplier ID must be a number",
		})
	}

	supplier, err := h.service.Get(c.Request().Context(), userID, supplierID)
	if err != nil {
		return apierrors.Domain(c, err)
	}

	return c.JSON(http.StatusOK, supplier)
}
