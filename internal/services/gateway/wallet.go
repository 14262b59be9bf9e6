package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"menupay/internal/models"
)

const (
	walletPayPath    = "/pg/v1/pay"
	walletRefundPath = "/pg/v1/refund"
)

// WalletAdapter drives a wallet-style checkout where the request body is a
// base64 JSON envelope checksummed with a salt key.
type WalletAdapter struct {
	baseURL string
	timeout time.Duration
}

func NewWalletAdapter(baseURL string, timeout time.Duration) *WalletAdapter {
	return &WalletAdapter{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (a *WalletAdapter) Variant() models.ProcessorVariant {
	return models.VariantWallet
}

type walletEnvelope struct {
	Request string `json:"request"`
}

type walletResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		State                 string `json:"state"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (a *WalletAdapter) CreatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentResponse, error) {
	if creds.MerchantID == "" || creds.SecretKey == "" {
		return nil, &Error{Variant: models.VariantWallet, Kind: KindAuth, Message: "missing merchant id or salt key", Err: ErrInvalidCredentials}
	}

	// Merchant transaction ids are capped at 35 alphanumeric characters.
	txnID := strings.ReplaceAll(req.IdempotencyKey, "-", "")
	payload := map[string]interface{}{
		"merchantId":            creds.MerchantID,
		"merchantTransactionId": txnID,
		"merchantUserId":        "ORDER-" + req.OrderID,
		"amount":                req.Amount,
		"redirectUrl":           req.ReturnURL,
		"redirectMode":          "REDIRECT",
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	}

	var out walletResponse
	if err := a.post(ctx, creds, walletPayPath, payload, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, statusError(models.VariantWallet, 422, out.Code, out.Message)
	}

	return &PaymentResponse{
		ProviderReference: txnID,
		PaymentURL:        out.Data.InstrumentResponse.RedirectInfo.URL,
		RequiresRedirect:  true,
		AdditionalData:    map[string]interface{}{"provider_transaction_id": out.Data.TransactionID},
	}, nil
}

func (a *WalletAdapter) CreateRefund(ctx context.Context, creds Credentials, req RefundRequest) (*RefundResponse, error) {
	payload := map[string]interface{}{
		"merchantId":            creds.MerchantID,
		"merchantTransactionId": strings.ReplaceAll(req.IdempotencyKey, "-", ""),
		"originalTransactionId": req.ProviderReference,
		"amount":                req.Amount,
	}

	var out walletResponse
	if err := a.post(ctx, creds, walletRefundPath, payload, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, statusError(models.VariantWallet, 422, out.Code, out.Message)
	}

	status := refundStatus(out.Data.State)
	if out.Code != "" && status == models.RefundStatusPending {
		status = refundStatus(out.Code)
	}
	return &RefundResponse{ProviderRefundID: strings.ReplaceAll(req.IdempotencyKey, "-", ""), Status: status}, nil
}

func (a *WalletAdapter) post(ctx context.Context, creds Credentials, path string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &Error{Variant: models.VariantWallet, Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	base := a.baseURL
	if creds.BaseURL != "" {
		base = strings.TrimRight(creds.BaseURL, "/")
	}
	return jsonCall{
		variant: models.VariantWallet,
		url:     base + path,
		body:    walletEnvelope{Request: encoded},
		headers: map[string]string{
			"X-VERIFY":      walletChecksum(encoded+path, creds),
			"X-MERCHANT-ID": creds.MerchantID,
		},
		timeout: a.timeout,
	}.do(ctx, out)
}

type walletCallback struct {
	Response string `json:"response"`
}

type walletCallbackBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		OriginalTransactionID string `json:"originalTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
	} `json:"data"`
}

// VerifyWebhook checks the X-VERIFY checksum of a server callback and decodes
// its base64 response.
func (a *WalletAdapter) VerifyWebhook(creds Credentials, payload []byte, signature string) (*Event, error) {
	if creds.SecretKey == "" {
		return nil, invalidSignature(models.VariantWallet, "no salt key configured")
	}

	var cb walletCallback
	if err := json.Unmarshal(payload, &cb); err != nil || cb.Response == "" {
		return nil, invalidSignature(models.VariantWallet, "callback without response")
	}
	expected := walletChecksum(cb.Response, creds)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(signature))) != 1 {
		return nil, invalidSignature(models.VariantWallet, "checksum mismatch")
	}

	decoded, err := base64.StdEncoding.DecodeString(cb.Response)
	if err != nil {
		return nil, ErrMalformedEvent
	}
	var body walletCallbackBody
	if err := json.Unmarshal(decoded, &body); err != nil || body.Data.MerchantTransactionID == "" {
		return nil, ErrMalformedEvent
	}

	evt := &Event{
		ID:      body.Code + ":" + body.Data.MerchantTransactionID,
		RawType: body.Code,
		Type:    EventUnknown,
		Amount:  body.Data.Amount,
	}
	switch body.Code {
	case "PAYMENT_SUCCESS":
		evt.Type = EventPaymentSucceeded
		evt.PaymentReference = body.Data.MerchantTransactionID
	case "PAYMENT_ERROR", "PAYMENT_DECLINED", "TIMED_OUT":
		evt.Type = EventPaymentFailed
		evt.PaymentReference = body.Data.MerchantTransactionID
		evt.FailureReason = body.Message
	case "REFUND_SUCCESS", "REFUND_FAILED":
		evt.Type = EventRefundSucceeded
		if body.Code == "REFUND_FAILED" {
			evt.Type = EventRefundFailed
			evt.FailureReason = body.Message
		}
		evt.PaymentReference = body.Data.OriginalTransactionID
		evt.RefundReference = body.Data.MerchantTransactionID
	}
	return evt, nil
}

// walletChecksum is sha256hex(input + saltKey) + "###" + saltIndex.
func walletChecksum(input string, creds Credentials) string {
	sum := sha256.Sum256([]byte(input + creds.SecretKey))
	index := creds.SaltIndex
	if index == "" {
		index = "1"
	}
	return hex.EncodeToString(sum[:]) + "###" + index
}
