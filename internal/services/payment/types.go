package payment

import (
	"time"

	"menupay/internal/models"
)

// Options are caller-supplied extras forwarded to the adapter.
type Options struct {
	ReturnURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// Attempt outcomes
const (
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// Attempt is one adapter call made while creating a payment.
type Attempt struct {
	ProcessorID uint                    `json:"processor_id"`
	Variant     models.ProcessorVariant `json:"variant"`
	Outcome     string                  `json:"outcome"`
	ErrorKind   string                  `json:"error_kind,omitempty"`
	ErrorCode   string                  `json:"error_code,omitempty"`
	LatencyMs   int64                   `json:"latency_ms"`
}

// PaymentIntentResult carries the persisted payment and the confirmation
// artifact the client needs to finish paying.
type PaymentIntentResult struct {
	Payment        *models.Payment        `json:"payment"`
	ClientSecret   string                 `json:"client_secret,omitempty"`
	PaymentURL     string                 `json:"payment_url,omitempty"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
	Attempts       []Attempt              `json:"attempts"`
}

// Config tunes the orchestrator.
type Config struct {
	AdapterTimeout time.Duration
}
