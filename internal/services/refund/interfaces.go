package refund

import (
	"context"

	"menupay/internal/models"
	"menupay/internal/services/gateway"
)

// Service is the refund orchestrator.
type Service interface {
	// CreateRefund refunds amount (or the whole remaining balance when nil)
	// through the processor that captured the payment.
	CreateRefund(ctx context.Context, businessID uint, paymentPublicID string, amount *int64, reason string) (*RefundResult, error)
	ListRefunds(ctx context.Context, businessID uint, paymentPublicID string) ([]models.PaymentRefund, error)
}

type CredentialSource interface {
	Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error)
}

type AdapterSource interface {
	Get(v models.ProcessorVariant) (gateway.Adapter, error)
}
