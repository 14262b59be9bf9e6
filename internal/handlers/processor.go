package handlers

import (
	"menupay/internal/services/gateway"
	"menupay/internal/services/processor"
	"menupay/internal/utils/response"
	"menupay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ProcessorHandler struct {
	processors processor.Service
}

func NewProcessorHandler(processors processor.Service) *ProcessorHandler {
	return &ProcessorHandler{processors: processors}
}

type credentialsInput struct {
	SecretKey     string `json:"secret_key"`
	PublicKey     string `json:"public_key"`
	WebhookSecret string `json:"webhook_secret"`
	MerchantID    string `json:"merchant_id"`
	SaltIndex     string `json:"salt_index"`
	BaseURL       string `json:"base_url" validate:"omitempty,url"`
}

func (in credentialsInput) credentials() gateway.Credentials {
	return gateway.Credentials{
		SecretKey:     in.SecretKey,
		PublicKey:     in.PublicKey,
		WebhookSecret: in.WebhookSecret,
		MerchantID:    in.MerchantID,
		SaltIndex:     in.SaltIndex,
		BaseURL:       in.BaseURL,
	}
}

type createProcessorRequest struct {
	Variant            string           `json:"variant" validate:"required,variant"`
	DisplayName        string           `json:"display_name" validate:"max=100"`
	Priority           int              `json:"priority" validate:"gte=0"`
	FeePercent         decimal.Decimal  `json:"fee_percent"`
	FixedFee           int64            `json:"fixed_fee" validate:"gte=0"`
	SettlementSchedule string           `json:"settlement_schedule" validate:"omitempty,frequency"`
	Credentials        credentialsInput `json:"credentials" validate:"required"`
}

// Create registers a processor config. It starts in pending_verification
// until activated.
func (h *ProcessorHandler) Create(c *fiber.Ctx) error {
	var input createProcessorRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Struct(input)
	v.Percent("fee_percent", input.FeePercent)
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	cfg, err := h.processors.Create(c.UserContext(), processor.CreateRequest{
		BusinessID:         businessID(c),
		Variant:            input.Variant,
		DisplayName:        input.DisplayName,
		Priority:           input.Priority,
		FeePercent:         input.FeePercent,
		FixedFee:           input.FixedFee,
		SettlementSchedule: input.SettlementSchedule,
		Credentials:        input.Credentials.credentials(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, "Processor created", cfg)
}

func (h *ProcessorHandler) List(c *fiber.Ctx) error {
	cfgs, err := h.processors.List(c.UserContext(), businessID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Processors retrieved", cfgs)
}

func (h *ProcessorHandler) Get(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	cfg, err := h.processors.Get(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Processor retrieved", cfg)
}

type updateProcessorRequest struct {
	DisplayName        *string           `json:"display_name" validate:"omitempty,max=100"`
	Priority           *int              `json:"priority" validate:"omitempty,gte=0"`
	FeePercent         *decimal.Decimal  `json:"fee_percent"`
	FixedFee           *int64            `json:"fixed_fee" validate:"omitempty,gte=0"`
	SettlementSchedule *string           `json:"settlement_schedule" validate:"omitempty,frequency"`
	Credentials        *credentialsInput `json:"credentials"`
}

func (h *ProcessorHandler) Update(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	var input updateProcessorRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Struct(input)
	if input.FeePercent != nil {
		v.Percent("fee_percent", *input.FeePercent)
	}
	if !v.Valid() {
		return response.ValidationErrors(c, v.Errors)
	}

	req := processor.UpdateRequest{
		DisplayName:        input.DisplayName,
		Priority:           input.Priority,
		FeePercent:         input.FeePercent,
		FixedFee:           input.FixedFee,
		SettlementSchedule: input.SettlementSchedule,
	}
	if input.Credentials != nil {
		creds := input.Credentials.credentials()
		req.Credentials = &creds
	}

	cfg, err := h.processors.Update(c.UserContext(), businessID(c), id, req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Processor updated", cfg)
}

func (h *ProcessorHandler) Activate(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	cfg, err := h.processors.Activate(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Processor activated", cfg)
}

func (h *ProcessorHandler) Disconnect(c *fiber.Ctx) error {
	id, ok := uintParam(c, "processorID")
	if !ok {
		return response.BadRequest(c, "invalid processor id")
	}
	cfg, err := h.processors.Disconnect(c.UserContext(), businessID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Processor disconnected", cfg)
}
