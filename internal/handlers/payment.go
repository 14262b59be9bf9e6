package handlers

import (
	"errors"

	"menupay/internal/services/payment"
	"menupay/internal/services/refund"
	"menupay/internal/utils/pagination"
	"menupay/internal/utils/response"
	"menupay/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments payment.Service
	refunds  refund.Service
}

func NewPaymentHandler(payments payment.Service, refunds refund.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments, refunds: refunds}
}

type createPaymentRequest struct {
	OrderID       string            `json:"order_id" validate:"required,max=64"`
	ProcessorID   *uint             `json:"processor_id" validate:"omitempty,gt=0"`
	ReturnURL     string            `json:"return_url" validate:"omitempty,url"`
	CustomerEmail string            `json:"customer_email" validate:"omitempty,email"`
	Metadata      map[string]string `json:"metadata"`
}

// CreatePayment opens a payment for an existing order.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var input createPaymentRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Struct(input)
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	result, err := h.payments.PayOrder(c.UserContext(), input.OrderID, businessID(c), input.ProcessorID, payment.Options{
		ReturnURL:     input.ReturnURL,
		CustomerEmail: input.CustomerEmail,
		Metadata:      input.Metadata,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, "Payment created", result)
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	payments, total, err := h.payments.ListPayments(c.UserContext(), businessID(c), c.Query("status"), p.Limit, p.Offset)
	if err != nil {
		return writeError(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, payments))
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	p, err := h.payments.GetPayment(c.UserContext(), businessID(c), c.Params("paymentID"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payment retrieved", p)
}

type createRefundRequest struct {
	Amount *int64 `json:"amount" validate:"omitempty,gt=0"`
	Reason string `json:"reason" validate:"max=255"`
}

// CreateRefund refunds part or all of a captured payment. A processor
// decline still answers with the recorded refund.
func (h *PaymentHandler) CreateRefund(c *fiber.Ctx) error {
	var input createRefundRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request format")
		}
	}
	v := validation.New()
	v.Struct(input)
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	result, err := h.refunds.CreateRefund(c.UserContext(), businessID(c), c.Params("paymentID"), input.Amount, input.Reason)
	if err != nil {
		if errors.Is(err, refund.ErrProviderRejected) && result != nil {
			return response.ErrorWithData(c, fiber.StatusBadGateway, err.Error(), result)
		}
		return writeError(c, err)
	}
	return response.Created(c, "Refund created", result)
}

func (h *PaymentHandler) ListRefunds(c *fiber.Ctx) error {
	refunds, err := h.refunds.ListRefunds(c.UserContext(), businessID(c), c.Params("paymentID"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Refunds retrieved", refunds)
}
