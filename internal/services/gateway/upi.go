package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"menupay/internal/models"
)

// UPIAdapter talks to a regional UPI gateway using hosted payment links.
// The customer approves the collect request in a UPI app, so confirmation is
// redirect based and only a webhook moves the payment forward.
type UPIAdapter struct {
	baseURL string
	timeout time.Duration
}

func NewUPIAdapter(baseURL string, timeout time.Duration) *UPIAdapter {
	return &UPIAdapter{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (a *UPIAdapter) Variant() models.ProcessorVariant {
	return models.VariantUPI
}

type upiLinkRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	ReferenceID string            `json:"reference_id"`
	Description string            `json:"description"`
	UPILink     bool              `json:"upi_link"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type upiLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

func (a *UPIAdapter) CreatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentResponse, error) {
	notes := map[string]string{"order_id": req.OrderID}
	for k, v := range req.Metadata {
		notes[k] = v
	}

	var link upiLinkResponse
	err := jsonCall{
		variant: models.VariantUPI,
		url:     a.base(creds) + "/v1/payment_links",
		body: upiLinkRequest{
			Amount:      req.Amount,
			Currency:    req.Currency,
			ReferenceID: req.IdempotencyKey,
			Description: req.Description,
			UPILink:     true,
			CallbackURL: req.ReturnURL,
			Notes:       notes,
		},
		headers:  map[string]string{"Idempotency-Key": req.IdempotencyKey},
		user:     creds.PublicKey,
		password: creds.SecretKey,
		timeout:  a.timeout,
	}.do(ctx, &link)
	if err != nil {
		return nil, err
	}
	if link.ID == "" {
		return nil, &Error{Variant: models.VariantUPI, Kind: KindProvider, Message: "payment link without id"}
	}

	return &PaymentResponse{
		ProviderReference: link.ID,
		PaymentURL:        link.ShortURL,
		RequiresRedirect:  true,
		AdditionalData:    map[string]interface{}{"link_status": link.Status},
	}, nil
}

type upiRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (a *UPIAdapter) CreateRefund(ctx context.Context, creds Credentials, req RefundRequest) (*RefundResponse, error) {
	var out upiRefundResponse
	err := jsonCall{
		variant: models.VariantUPI,
		url:     a.base(creds) + "/v1/payment_links/" + req.ProviderReference + "/refunds",
		body: map[string]interface{}{
			"amount": req.Amount,
			"notes":  map[string]string{"reason": req.Reason},
		},
		headers:  map[string]string{"Idempotency-Key": req.IdempotencyKey},
		user:     creds.PublicKey,
		password: creds.SecretKey,
		timeout:  a.timeout,
	}.do(ctx, &out)
	if err != nil {
		return nil, err
	}
	return &RefundResponse{ProviderRefundID: out.ID, Status: refundStatus(out.Status)}, nil
}

type upiEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			ID         string `json:"id"`
			AmountPaid int64  `json:"amount_paid"`
		} `json:"payment_link"`
		Refund struct {
			ID            string `json:"id"`
			Amount        int64  `json:"amount"`
			PaymentLinkID string `json:"payment_link_id"`
		} `json:"refund"`
		ErrorDescription string `json:"error_description"`
	} `json:"payload"`
}

// VerifyWebhook checks the hex HMAC-SHA256 of the raw body.
func (a *UPIAdapter) VerifyWebhook(creds Credentials, payload []byte, signature string) (*Event, error) {
	if creds.WebhookSecret == "" {
		return nil, invalidSignature(models.VariantUPI, "no webhook secret configured")
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return nil, invalidSignature(models.VariantUPI, "signature is not hex")
	}
	mac := hmac.New(sha256.New, []byte(creds.WebhookSecret))
	mac.Write(payload)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return nil, invalidSignature(models.VariantUPI, "signature mismatch")
	}

	var raw upiEvent
	if err := json.Unmarshal(payload, &raw); err != nil || raw.ID == "" {
		return nil, ErrMalformedEvent
	}

	evt := &Event{ID: raw.ID, RawType: raw.Event, Type: EventUnknown}
	switch raw.Event {
	case "payment_link.paid":
		evt.Type = EventPaymentSucceeded
		evt.PaymentReference = raw.Payload.PaymentLink.ID
		evt.Amount = raw.Payload.PaymentLink.AmountPaid
	case "payment_link.expired", "payment_link.cancelled":
		evt.Type = EventPaymentFailed
		evt.PaymentReference = raw.Payload.PaymentLink.ID
		evt.FailureReason = raw.Payload.ErrorDescription
	case "payment.failed":
		// The link stays open for another attempt until it expires.
		evt.Type = EventPaymentAttemptFailed
		evt.PaymentReference = raw.Payload.PaymentLink.ID
		evt.FailureReason = raw.Payload.ErrorDescription
	case "refund.processed", "refund.failed":
		evt.Type = EventRefundSucceeded
		if raw.Event == "refund.failed" {
			evt.Type = EventRefundFailed
			evt.FailureReason = raw.Payload.ErrorDescription
		}
		evt.PaymentReference = raw.Payload.Refund.PaymentLinkID
		evt.RefundReference = raw.Payload.Refund.ID
		evt.Amount = raw.Payload.Refund.Amount
	}
	return evt, nil
}

func (a *UPIAdapter) base(creds Credentials) string {
	if creds.BaseURL != "" {
		return strings.TrimRight(creds.BaseURL, "/")
	}
	return a.baseURL
}
