package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment statuses
const (
	PaymentStatusPending           = "pending"
	PaymentStatusProcessing        = "processing"
	PaymentStatusSucceeded         = "succeeded"
	PaymentStatusFailed            = "failed"
	PaymentStatusPartiallyRefunded = "partially_refunded"
	PaymentStatusRefunded          = "refunded"
)

var paymentTransitions = map[string][]string{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusProcessing:        {PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusSucceeded:         {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
}

// CanTransition reports whether a payment may move from one status to another.
// Anything not listed, including a repeat of the current status, is disallowed.
func CanTransition(from, to string) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourceStatuses returns every status that may transition into to.
func SourceStatuses(to string) []string {
	var from []string
	for _, candidate := range []string{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusSucceeded,
		PaymentStatusPartiallyRefunded,
	} {
		if CanTransition(candidate, to) {
			from = append(from, candidate)
		}
	}
	return from
}

// Payment records one attempt to collect an order's amount through a processor.
type Payment struct {
	ID                uint             `gorm:"primarykey" json:"id"`
	PublicID          string           `gorm:"type:varchar(36);uniqueIndex;not null" json:"public_id"`
	OrderID           string           `gorm:"index;not null" json:"order_id"`
	BusinessID        uint             `gorm:"index;not null" json:"business_id"`
	ProcessorConfigID uint             `gorm:"uniqueIndex:idx_payments_processor_ref;not null" json:"processor_config_id"`
	Variant           ProcessorVariant `gorm:"type:varchar(32);not null" json:"variant"`
	ProviderReference string           `gorm:"uniqueIndex:idx_payments_processor_ref;not null" json:"provider_reference"`
	Amount            int64            `gorm:"not null" json:"amount"`
	Currency          string           `gorm:"type:varchar(3);not null" json:"currency"`
	Description       string           `json:"description"`
	Status            string           `gorm:"type:varchar(32);index;not null;default:'pending'" json:"status"`
	IdempotencyKey    string           `gorm:"index" json:"-"`
	FailureReason     string           `json:"failure_reason,omitempty"`

	// CapturedOrderID mirrors OrderID once the payment succeeds; the unique
	// index allows a single captured payment per order.
	CapturedOrderID *string    `gorm:"uniqueIndex" json:"-"`
	CapturedAt      *time.Time `gorm:"index" json:"captured_at,omitempty"`
	LastEventID     string     `json:"last_event_id,omitempty"`

	RefundedAmount   int64  `gorm:"not null;default:0" json:"refunded_amount"`
	RefundReason     string `json:"refund_reason,omitempty"`
	ProviderRefundID string `json:"provider_refund_id,omitempty"`

	SettlementEligible bool       `gorm:"not null;default:false" json:"settlement_eligible"`
	PayoutID           *uint      `gorm:"index" json:"payout_id,omitempty"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`

	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RefundableBalance is the amount that can still be refunded.
func (p *Payment) RefundableBalance() int64 {
	return p.Amount - p.RefundedAmount
}

// IsCaptured reports whether the payment collected funds.
func (p *Payment) IsCaptured() bool {
	switch p.Status {
	case PaymentStatusSucceeded, PaymentStatusPartiallyRefunded, PaymentStatusRefunded:
		return true
	}
	return false
}

// Refund statuses
const (
	RefundStatusPending   = "pending"
	RefundStatusSucceeded = "succeeded"
	RefundStatusFailed    = "failed"
)

// PaymentRefund is one refund issued against a payment.
type PaymentRefund struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	PublicID         string `gorm:"type:varchar(36);uniqueIndex;not null" json:"public_id"`
	PaymentID        uint   `gorm:"index;not null" json:"payment_id"`
	Amount           int64  `gorm:"not null" json:"amount"`
	Reason           string `json:"reason,omitempty"`
	Status           string `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	ProviderRefundID string `gorm:"index" json:"provider_refund_id,omitempty"`
	IdempotencyKey   string `json:"-"`
	FailureReason    string `json:"failure_reason,omitempty"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order is the payable view of an order. Orders are owned by the ordering
// side of the platform; this service only reads them.
type Order struct {
	ID          string    `gorm:"type:varchar(64);primarykey" json:"id"`
	BusinessID  uint      `gorm:"index;not null" json:"business_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
