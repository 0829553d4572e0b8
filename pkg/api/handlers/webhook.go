package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/plannerhq/vendorbook/pkg/api/errors"
	"github.com/plannerhq/vendorbook/pkg/livesync"
	"github.com/plannerhq/vendorbook/pkg/models"
)

// MailboxWebhookHandler receives new-mail notifications from the
// mailbox provider. The shared-secret middleware guards the route; the
// handler only records the nudge, processing happens on the next poll.
type MailboxWebhookHandler struct {
	sync      *livesync.Service
	validator *validator.Validate
}

// NewMailboxWebhookHandler creates a new mailbox webhook handler.
func NewMailboxWebhookHandler(syncService *livesync.Service) *MailboxWebhookHandler {
	return &MailboxWebhookHandler{
		sync:      syncService,
		validator: validator.New(),
	}
}

// MailboxNotification is the provider's push payload after the
// forwarding hop unwraps it to the account it concerns.
type MailboxNotification struct {
	OwnerID int `json:"owner_id" validate:"required,min=1"`
}

// Notify handles POST /api/v1/webhooks/mailbox
func (h *MailboxWebhookHandler) Notify(c echo.Context) error {
	var req MailboxNotification
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	h.sync.Nudge(c.Request().Context(), req.OwnerID)

	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "scheduled",
	})
}
