package errors

import (
	stderrors "errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/models"
)

// Domain maps a domain error to its HTTP response. Client-side codes
// pass the domain message through; everything at 500 and above logs the
// underlying error and answers with a generic message.
func Domain(c echo.Context, err error) error {
	switch domain.GetErrorCode(err) {
	case domain.ErrCodeNotFound:
		return respond(c, http.StatusNotFound, "not_found", err)
	case domain.ErrCodeValidation:
		return respond(c, http.StatusBadRequest, "validation_error", err)
	case domain.ErrCodeBadRequest:
		return respond(c, http.StatusBadRequest, "bad_request", err)
	case domain.ErrCodeUnauthorized:
		return respond(c, http.StatusUnauthorized, "unauthorized", err)
	case domain.ErrCodeForbidden:
		return respond(c, http.StatusForbidden, "forbidden", err)
	case domain.ErrCodeConflict:
		return respond(c, http.StatusConflict, "conflict", err)
	case domain.ErrCodeStaleProposal:
		return respond(c, http.StatusConflict, "stale_proposal", err)
	case domain.ErrCodeProvider:
		log.Printf("[PROVIDER ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "provider_unavailable",
			Message: "The mailbox provider is temporarily unavailable. Please try again later.",
		})
	case domain.ErrCodeProviderFatal:
		log.Printf("[PROVIDER FATAL] Path: %s, Error: %v", c.Request().URL.Path, err)
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "provider_error",
			Message: "The mailbox provider rejected the request. Reconnect the mailbox and try again.",
		})
	case domain.ErrCodeScorer:
		log.Printf("[SCORER ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "scorer_error",
			Message: "The classification service failed. Please try again later.",
		})
	default:
		return InternalError(c, err)
	}
}

func respond(c echo.Context, status int, code string, err error) error {
	var de *domain.DomainError
	message := ""
	if stderrors.As(err, &de) {
		message = de.Message
	}
	return c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message, // Message is safe to expose (e.g., "A run is already active")
	})
}
