package webhook

import (
	"context"

	"menupay/internal/models"
	"menupay/internal/services/gateway"
)

// Service verifies provider webhooks and applies them to payments.
type Service interface {
	// HandleWebhook verifies payload against the processor's secret and
	// applies the event at most once. When processorID is nil every
	// connected config of the variant is tried.
	HandleWebhook(ctx context.Context, variant string, payload []byte, signature string, processorID *uint) (*Result, error)
}

type CredentialSource interface {
	Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error)
}

type AdapterSource interface {
	Get(v models.ProcessorVariant) (gateway.Adapter, error)
}
