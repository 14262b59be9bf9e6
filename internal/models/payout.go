package models

import "time"

// Payout statuses
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusPaid       = "paid"
	PayoutStatusFailed     = "failed"
)

// PayoutSchedule holds the settlement rules for one business+processor pair.
type PayoutSchedule struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	BusinessID        uint       `gorm:"uniqueIndex:idx_payout_schedules_pair;not null" json:"business_id"`
	ProcessorConfigID uint       `gorm:"uniqueIndex:idx_payout_schedules_pair;not null" json:"processor_config_id"`
	Frequency         string     `gorm:"type:varchar(16);not null;default:'weekly'" json:"frequency"`
	MinimumThreshold  int64      `gorm:"not null" json:"minimum_threshold"`
	MaxHoldDays       int        `gorm:"not null" json:"max_hold_days"`
	OnHold            bool       `gorm:"not null;default:false" json:"on_hold"`
	HoldReason        string     `json:"hold_reason,omitempty"`
	NotifyOnPayout    bool       `gorm:"not null" json:"notify_on_payout"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	LastPayoutAt      *time.Time `json:"last_payout_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Period returns the length of one schedule cycle ending at now.
func (s *PayoutSchedule) Period(now time.Time) time.Duration {
	switch s.Frequency {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyMonthly:
		return now.Sub(now.AddDate(0, -1, 0))
	default:
		return 7 * 24 * time.Hour
	}
}

// IsDue reports whether a full cycle elapsed since the last run.
func (s *PayoutSchedule) IsDue(now time.Time) bool {
	if s.LastRunAt == nil {
		return true
	}
	return !s.LastRunAt.Add(s.Period(now)).After(now)
}

// Payout is a settlement batch of captured payments owed to a business.
type Payout struct {
	ID                    uint       `gorm:"primarykey" json:"id"`
	PublicID              string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"public_id"`
	BusinessID            uint       `gorm:"index;not null" json:"business_id"`
	ProcessorConfigID     uint       `gorm:"index;not null" json:"processor_config_id"`
	Currency              string     `gorm:"type:varchar(3)" json:"currency"`
	PeriodStart           time.Time  `json:"period_start"`
	PeriodEnd             time.Time  `json:"period_end"`
	PaymentCount          int        `json:"payment_count"`
	GrossAmount           int64      `gorm:"not null" json:"gross_amount"`
	ProcessorFeeTotal     int64      `gorm:"not null" json:"processor_fee_total"`
	PlatformFeeTotal      int64      `gorm:"not null" json:"platform_fee_total"`
	AdjustmentTotal       int64      `gorm:"not null;default:0" json:"adjustment_total"`
	NetAmount             int64      `gorm:"not null" json:"net_amount"`
	Forced                bool       `json:"forced"`
	Status                string     `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	RetryCount            int        `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt           *time.Time `json:"next_retry_date,omitempty"`
	ProviderTransactionID string     `json:"provider_transaction_id,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	PaidAt                *time.Time `json:"paid_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// SettlementAdjustment is a clawback owed by a business after a refund on a
// payment that was already aggregated into a payout.
type SettlementAdjustment struct {
	ID                uint   `gorm:"primarykey" json:"id"`
	BusinessID        uint   `gorm:"index:idx_adjustments_pair;not null" json:"business_id"`
	ProcessorConfigID uint   `gorm:"index:idx_adjustments_pair;not null" json:"processor_config_id"`
	PaymentID         uint   `gorm:"index;not null" json:"payment_id"`
	RefundID          uint   `gorm:"uniqueIndex" json:"refund_id"`
	Amount            int64  `gorm:"not null" json:"amount"`
	Reason            string `json:"reason"`
	AppliedPayoutID   *uint  `gorm:"index" json:"applied_payout_id,omitempty"`
	CreatedAt         time.Time
}
