package handlers

import (
	"errors"

	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/services/gateway"
	"menupay/internal/services/payment"
	"menupay/internal/services/processor"
	"menupay/internal/services/refund"
	"menupay/internal/services/settlement"
	"menupay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{models.ErrInvalidSignature, fiber.StatusBadRequest},
	{gateway.ErrMalformedEvent, fiber.StatusBadRequest},
	{gateway.ErrUnsupportedVariant, fiber.StatusBadRequest},
	{payment.ErrInvalidAmount, fiber.StatusBadRequest},
	{payment.ErrInvalidCurrency, fiber.StatusBadRequest},
	{refund.ErrInvalidAmount, fiber.StatusBadRequest},
	{settlement.ErrInvalidSchedule, fiber.StatusBadRequest},
	{settlement.ErrInvalidRange, fiber.StatusBadRequest},

	{models.ErrPaymentNotFound, fiber.StatusNotFound},
	{models.ErrProcessorNotFound, fiber.StatusNotFound},
	{models.ErrPayoutNotFound, fiber.StatusNotFound},
	{models.ErrOrderNotFound, fiber.StatusNotFound},
	{models.ErrRefundNotFound, fiber.StatusNotFound},

	{models.ErrOrderAlreadyPaid, fiber.StatusConflict},
	{models.ErrInvalidPaymentStatus, fiber.StatusConflict},
	{models.ErrRefundExceedsBalance, fiber.StatusConflict},
	{models.ErrScheduleLocked, fiber.StatusConflict},
	{processor.ErrProcessorDisconnected, fiber.StatusConflict},
	{settlement.ErrInvalidPayoutStatus, fiber.StatusConflict},

	{models.ErrNoActiveProcessor, fiber.StatusUnprocessableEntity},
	{gateway.ErrInvalidCredentials, fiber.StatusUnprocessableEntity},

	{models.ErrAllProcessorsExhausted, fiber.StatusBadGateway},
	{refund.ErrProviderRejected, fiber.StatusBadGateway},
}

// statusFor maps a service error to its HTTP status; unknown errors are 500.
func statusFor(err error) int {
	if processor.IsClientError(err) {
		return fiber.StatusBadRequest
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.SW("method", c.Method(), "path", c.Path()).Errorw("request failed", "error", err)
		return response.ServerError(c, "internal server error")
	}
	return response.Error(c, status, err.Error())
}
