package handlers

import (
	"time"

	"menupay/internal/models"
	"menupay/internal/services/settlement"
	"menupay/internal/utils/pagination"
	"menupay/internal/utils/response"
	"menupay/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type PayoutHandler struct {
	settlement settlement.Service
}

func NewPayoutHandler(svc settlement.Service) *PayoutHandler {
	return &PayoutHandler{settlement: svc}
}

func (h *PayoutHandler) GetSchedule(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	sched, err := h.settlement.GetSchedule(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payout schedule retrieved", sched)
}

type updateScheduleRequest struct {
	Frequency        *string `json:"frequency" validate:"omitempty,frequency"`
	MinimumThreshold *int64  `json:"minimum_threshold" validate:"omitempty,gte=0"`
	MaxHoldDays      *int    `json:"max_hold_days" validate:"omitempty,gte=0,lte=365"`
	OnHold           *bool   `json:"on_hold"`
	HoldReason       *string `json:"hold_reason" validate:"omitempty,max=255"`
	NotifyOnPayout   *bool   `json:"notify_on_payout"`
}

func (h *PayoutHandler) UpdateSchedule(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	var input updateScheduleRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Struct(input)
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	sched, err := h.settlement.UpdateSchedule(c.UserContext(), businessID(c), id, settlement.ScheduleUpdate{
		Frequency:        input.Frequency,
		MinimumThreshold: input.MinimumThreshold,
		MaxHoldDays:      input.MaxHoldDays,
		OnHold:           input.OnHold,
		HoldReason:       input.HoldReason,
		NotifyOnPayout:   input.NotifyOnPayout,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payout schedule updated", sched)
}

// RunSchedule settles a pair now instead of waiting for the worker.
func (h *PayoutHandler) RunSchedule(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	result, err := h.settlement.RunSchedule(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	if result.Payout == nil {
		return response.Success(c, "No payout this cycle", result)
	}
	return response.Created(c, "Payout created", result)
}

func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	payouts, total, err := h.settlement.ListPayouts(c.UserContext(), businessID(c), c.Query("status"), p.Limit, p.Offset)
	if err != nil {
		return writeError(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, payouts))
}

func (h *PayoutHandler) GetPayout(c *fiber.Ctx) error {
	id, ok := uintParam(c, "payoutID")
	if !ok {
		return response.BadRequest(c, "invalid payout id")
	}
	payout, payments, err := h.settlement.GetPayout(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payout retrieved", fiber.Map{"payout": payout, "payments": payments})
}

func (h *PayoutHandler) RetryPayout(c *fiber.Ctx) error {
	id, ok := uintParam(c, "payoutID")
	if !ok {
		return response.BadRequest(c, "invalid payout id")
	}
	payout, err := h.settlement.RetryPayout(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payout queued for retry", payout)
}

type payoutStatusRequest struct {
	Status                string `json:"status" validate:"required,oneof=processing paid failed"`
	ProviderTransactionID string `json:"provider_transaction_id" validate:"max=128"`
	FailureReason         string `json:"failure_reason" validate:"max=255"`
}

// UpdatePayoutStatus is called by the disbursement side (admin only).
func (h *PayoutHandler) UpdatePayoutStatus(c *fiber.Ctx) error {
	id, ok := uintParam(c, "payoutID")
	if !ok {
		return response.BadRequest(c, "invalid payout id")
	}
	var input payoutStatusRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Struct(input)
	v.Check(input.Status != models.PayoutStatusFailed || input.FailureReason != "", "failure_reason", "is required when status is failed")
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	payout, err := h.settlement.UpdatePayoutStatus(c.UserContext(), id, settlement.StatusUpdate{
		Status:                input.Status,
		ProviderTransactionID: input.ProviderTransactionID,
		FailureReason:         input.FailureReason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Payout updated", payout)
}

// Report returns the settlement report for ?from=&to= (RFC 3339 or
// YYYY-MM-DD; to is exclusive).
func (h *PayoutHandler) Report(c *fiber.Ctx) error {
	from, errFrom := parseDate(c.Query("from"))
	to, errTo := parseDate(c.Query("to"))

	v := validation.New()
	v.Check(errFrom == nil, "from", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	v.Check(errTo == nil, "to", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	if v.Valid() {
		v.Period("range", from, to, validation.MaxReportDays*24*time.Hour)
	}
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	report, err := h.settlement.Report(c.UserContext(), businessID(c), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Settlement report", report)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
