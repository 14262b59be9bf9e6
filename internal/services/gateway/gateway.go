// Package gateway defines the contract every payment-provider adapter
// satisfies and the registry the orchestrators dispatch through.
package gateway

import (
	"context"
	"fmt"

	"menupay/internal/models"
)

// Adapter translates the generic payment contract into one provider protocol.
// Adding a provider means adding an Adapter, never touching the orchestrators.
type Adapter interface {
	Variant() models.ProcessorVariant
	CreatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentResponse, error)
	CreateRefund(ctx context.Context, creds Credentials, req RefundRequest) (*RefundResponse, error)
	VerifyWebhook(creds Credentials, payload []byte, signature string) (*Event, error)
}

// PaymentRequest asks a provider to open a payment for an order.
// IdempotencyKey is deterministic per order/processor/attempt so a retried
// call never creates a second external object.
type PaymentRequest struct {
	OrderID        string
	Amount         int64
	Currency       string
	Description    string
	IdempotencyKey string
	ReturnURL      string
	CustomerEmail  string
	Metadata       map[string]string
}

// PaymentResponse is the confirmation artifact produced by a provider.
type PaymentResponse struct {
	ProviderReference string
	ClientSecret      string
	PaymentURL        string
	RequiresRedirect  bool
	AdditionalData    map[string]interface{}
}

type RefundRequest struct {
	ProviderReference string
	Amount            int64
	Currency          string
	Reason            string
	IdempotencyKey    string
}

type RefundResponse struct {
	ProviderRefundID string
	Status           string
}

// EventType is the provider-neutral kind of a webhook event.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	// EventPaymentAttemptFailed is a declined attempt the customer may retry
	// on the same provider object. It never ends the payment.
	EventPaymentAttemptFailed EventType = "payment.attempt_failed"
	EventRefundSucceeded      EventType = "refund.succeeded"
	EventRefundFailed         EventType = "refund.failed"
	EventUnknown              EventType = "unknown"
)

// Event is a verified, normalised webhook event.
type Event struct {
	ID               string
	Type             EventType
	RawType          string
	PaymentReference string
	RefundReference  string
	Amount           int64
	FailureReason    string
}

// Registry maps each variant to its adapter.
type Registry struct {
	adapters map[models.ProcessorVariant]Adapter
}

// NewRegistry builds a registry; a later adapter for the same variant wins.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.ProcessorVariant]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Variant()] = a
	}
	return r
}

// Get returns the adapter registered for v.
func (r *Registry) Get(v models.ProcessorVariant) (Adapter, error) {
	a, ok := r.adapters[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVariant, v)
	}
	return a, nil
}
