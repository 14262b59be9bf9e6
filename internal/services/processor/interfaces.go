package processor

import (
	"context"

	"menupay/internal/models"
	"menupay/internal/services/gateway"
)

// Service is the processor registry: selection for payments plus owner
// management of configs.
type Service interface {
	// SelectProcessor returns the preferred config when it belongs to the
	// business and is active, else the active config with the lowest
	// priority. It never writes.
	SelectProcessor(ctx context.Context, businessID uint, preferredID *uint) (*models.PaymentProcessorConfig, error)
	// Candidates is the full fallback order starting with SelectProcessor's
	// choice.
	Candidates(ctx context.Context, businessID uint, preferredID *uint) ([]models.PaymentProcessorConfig, error)
	Credentials(cfg *models.PaymentProcessorConfig) (gateway.Credentials, error)
	MarkFailed(ctx context.Context, id uint, cause error)
	MarkUsed(ctx context.Context, id uint)

	Create(ctx context.Context, req CreateRequest) (*models.PaymentProcessorConfig, error)
	Get(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error)
	List(ctx context.Context, businessID uint) ([]models.PaymentProcessorConfig, error)
	Update(ctx context.Context, businessID, id uint, req UpdateRequest) (*models.PaymentProcessorConfig, error)
	Activate(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error)
	Disconnect(ctx context.Context, businessID, id uint) (*models.PaymentProcessorConfig, error)
}

// CredentialSealer encrypts and decrypts processor credentials at rest.
type CredentialSealer interface {
	Seal(creds gateway.Credentials) ([]byte, error)
	Open(sealed []byte) (gateway.Credentials, error)
}
