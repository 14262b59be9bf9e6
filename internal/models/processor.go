package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessorVariant identifies one payment-provider integration.
type ProcessorVariant string

const (
	VariantCard   ProcessorVariant = "card"
	VariantUPI    ProcessorVariant = "upi"
	VariantWallet ProcessorVariant = "wallet"
)

// Variants lists every supported variant.
var Variants = []ProcessorVariant{VariantCard, VariantUPI, VariantWallet}

// Valid reports whether v is one of the supported variants.
func (v ProcessorVariant) Valid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

// Processor statuses
const (
	ProcessorStatusPendingVerification = "pending_verification"
	ProcessorStatusActive              = "active"
	ProcessorStatusFailed              = "failed"
	ProcessorStatusDisconnected        = "disconnected"
)

// Payout frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// PaymentProcessorConfig is one configured processor owned by a business.
type PaymentProcessorConfig struct {
	ID                   uint             `gorm:"primarykey" json:"id"`
	BusinessID           uint             `gorm:"index;not null" json:"business_id"`
	Variant              ProcessorVariant `gorm:"type:varchar(32);not null" json:"variant"`
	DisplayName          string           `json:"display_name"`
	Status               string           `gorm:"type:varchar(32);not null;default:'pending_verification'" json:"status"`
	Priority             int              `gorm:"not null" json:"priority"`
	FeePercent           decimal.Decimal  `gorm:"type:numeric(7,4);not null;default:0" json:"fee_percent"`
	FixedFee             int64            `gorm:"not null;default:0" json:"fixed_fee"`
	SettlementSchedule   string           `gorm:"type:varchar(16);not null;default:'weekly'" json:"settlement_schedule"`
	EncryptedCredentials []byte           `json:"-"`
	LastError            string           `json:"last_error,omitempty"`
	LastUsedAt           *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// IsActive reports whether the processor may be selected.
func (p *PaymentProcessorConfig) IsActive() bool {
	return p.Status == ProcessorStatusActive
}
