package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/services"
)

const stripeSignatureHeader = "Stripe-Signature"

type webhookApplicationService interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*services.WebhookResult, error)
}

type WebhookHandler struct {
	service webhookApplicationService
	logger  zerolog.Logger
}

func NewWebhookHandler(service webhookApplicationService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

// Stripe retries anything that is not 2xx, so only verified and recorded events are
// acknowledged.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get(stripeSignatureHeader)
	if signature == "" {
		return respondError(c, h.logger, services.ErrInvalidSignature)
	}

	if _, err := h.service.HandleWebhook(c.Context(), payload, signature); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"received": true})
}
