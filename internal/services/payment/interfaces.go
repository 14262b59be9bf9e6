package payment

import (
	"context"

	"menupay/internal/models"
	"menupay/internal/services/gateway"
)

// Service is the payment orchestrator.
type Service interface {
	// CreatePayment opens a payment for order through the business's
	// processors, falling back down the priority list on adapter failure.
	CreatePayment(ctx context.Context, order models.Order, businessID uint, preferredProcessorID *uint, opts Options) (*PaymentIntentResult, error)
	// PayOrder loads the order and calls CreatePayment.
	PayOrder(ctx context.Context, orderID string, businessID uint, preferredProcessorID *uint, opts Options) (*PaymentIntentResult, error)

	GetPayment(ctx context.Context, businessID uint, publicID string) (*models.Payment, error)
	ListPayments(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payment, int64, error)
}

// ProcessorRegistry is the part of the processor service the orchestrator
// needs.
type ProcessorRegistry interface {
	Candidates(ctx context.Context, businessID uint, preferredID *uint) ([]models.PaymentProcessorConfig, error)
	Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error)
	MarkFailed(ctx context.Context, id uint, cause error)
	MarkUsed(ctx context.Context, id uint)
}

// AdapterSource resolves the adapter for a variant.
type AdapterSource interface {
	Get(v models.ProcessorVariant) (gateway.Adapter, error)
}
