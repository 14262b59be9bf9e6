package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"menupay/internal/models"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/refund"
	"github.com/stripe/stripe-go/v72/webhook"
)

// CardAdapter drives the card-network gateway through Stripe PaymentIntents.
// Confirmation happens in-app with the returned client secret.
type CardAdapter struct {
	backend stripe.Backend
}

// NewCardAdapter creates the Stripe adapter. Network retries are disabled so
// the orchestrator's own bounded fallback is the only retry loop.
func NewCardAdapter(timeout time.Duration, apiURL string) *CardAdapter {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiURL != "" {
		cfg.URL = stripe.String(apiURL)
	}
	return &CardAdapter{backend: stripe.GetBackendWithConfig(stripe.APIBackend, cfg)}
}

func (a *CardAdapter) Variant() models.ProcessorVariant {
	return models.VariantCard
}

func (a *CardAdapter) CreatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentResponse, error) {
	if creds.SecretKey == "" {
		return nil, &Error{Variant: models.VariantCard, Kind: KindAuth, Message: "missing secret key", Err: ErrInvalidCredentials}
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("order_id", req.OrderID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	client := paymentintent.Client{B: a.backend, Key: creds.SecretKey}
	pi, err := client.New(params)
	if err != nil {
		return nil, a.translate(err)
	}

	return &PaymentResponse{
		ProviderReference: pi.ID,
		ClientSecret:      pi.ClientSecret,
		AdditionalData: map[string]interface{}{
			"publishable_key": creds.PublicKey,
			"intent_status":   string(pi.Status),
		},
	}, nil
}

func (a *CardAdapter) CreateRefund(ctx context.Context, creds Credentials, req RefundRequest) (*RefundResponse, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ProviderReference),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	client := refund.Client{B: a.backend, Key: creds.SecretKey}
	r, err := client.New(params)
	if err != nil {
		return nil, a.translate(err)
	}
	return &RefundResponse{ProviderRefundID: r.ID, Status: refundStatus(string(r.Status))}, nil
}

func (a *CardAdapter) VerifyWebhook(creds Credentials, payload []byte, signature string) (*Event, error) {
	if creds.WebhookSecret == "" {
		return nil, invalidSignature(models.VariantCard, "no webhook secret configured")
	}
	if err := webhook.ValidatePayload(payload, signature, creds.WebhookSecret); err != nil {
		return nil, invalidSignature(models.VariantCard, err.Error())
	}

	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		return nil, ErrMalformedEvent
	}

	out := &Event{ID: evt.ID, RawType: evt.Type, Type: EventUnknown}
	if evt.Data == nil {
		return out, nil
	}

	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, ErrMalformedEvent
		}
		out.PaymentReference = pi.ID
		out.Amount = pi.AmountReceived
		switch evt.Type {
		case "payment_intent.succeeded":
			out.Type = EventPaymentSucceeded
		case "payment_intent.payment_failed":
			// The intent returns to requires_payment_method and stays payable.
			out.Type = EventPaymentAttemptFailed
			out.Amount = pi.Amount
			if pi.LastPaymentError != nil {
				out.FailureReason = pi.LastPaymentError.Msg
			}
		default:
			out.Type = EventPaymentFailed
			out.Amount = pi.Amount
			out.FailureReason = string(pi.CancellationReason)
			if out.FailureReason == "" {
				out.FailureReason = "canceled"
			}
		}
	case "charge.refund.updated", "refund.updated", "refund.created":
		var r stripe.Refund
		if err := json.Unmarshal(evt.Data.Raw, &r); err != nil {
			return nil, ErrMalformedEvent
		}
		if r.PaymentIntent != nil {
			out.PaymentReference = r.PaymentIntent.ID
		}
		out.RefundReference = r.ID
		out.Amount = r.Amount
		switch refundStatus(string(r.Status)) {
		case models.RefundStatusSucceeded:
			out.Type = EventRefundSucceeded
		case models.RefundStatusFailed:
			out.Type = EventRefundFailed
			out.FailureReason = string(r.FailureReason)
		}
	}
	return out, nil
}

func (a *CardAdapter) translate(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return statusError(models.VariantCard, serr.HTTPStatusCode, string(serr.Code), serr.Msg)
	}
	return transportError(models.VariantCard, err)
}

func refundStatus(s string) string {
	switch strings.ToLower(s) {
	case "succeeded", "processed", "refund_success":
		return models.RefundStatusSucceeded
	case "failed", "canceled", "cancelled", "refund_failed":
		return models.RefundStatusFailed
	default:
		return models.RefundStatusPending
	}
}
