package handlers

import (
	"menupay/internal/models"
	"menupay/internal/services/webhook"
	"menupay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// signatureHeaders names the header each provider signs its deliveries in.
var signatureHeaders = map[models.ProcessorVariant]string{
	models.VariantCard:   "Stripe-Signature",
	models.VariantUPI:    "X-Razorpay-Signature",
	models.VariantWallet: "X-VERIFY",
}

type WebhookHandler struct {
	webhooks webhook.Service
}

func NewWebhookHandler(webhooks webhook.Service) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Handle receives a provider delivery. Any non-2xx answer makes the
// provider redeliver, so only verified and applied (or duplicate) events
// are acknowledged.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	variant := models.ProcessorVariant(c.Params("variant"))
	header, ok := signatureHeaders[variant]
	if !ok {
		return response.BadRequest(c, "unsupported processor variant")
	}

	var processorID *uint
	if c.Params("processorID") != "" {
		id, ok := uintParam(c, "processorID")
		if !ok {
			return response.BadRequest(c, "invalid processor id")
		}
		processorID = &id
	}

	// The body must be verified byte for byte; copy it out of fasthttp's
	// reusable buffer.
	payload := append([]byte(nil), c.Body()...)

	result, err := h.webhooks.HandleWebhook(c.UserContext(), string(variant), payload, c.Get(header), processorID)
	if err != nil {
		return writeError(c, err)
	}
	return response.Accepted(c, result)
}
