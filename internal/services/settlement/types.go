package settlement

import (
	"time"

	"menupay/internal/models"

	"github.com/shopspring/decimal"
)

// Config carries the platform-wide settlement rules.
type Config struct {
	PlatformFeePercent decimal.Decimal
	PlatformFixedFee   int64
	PayoutFixedFee     int64

	DefaultFrequency   string
	DefaultThreshold   int64
	DefaultMaxHoldDays int
	LockTTL            time.Duration
}

// RunResult is the outcome of one schedule run. Payout is nil when the run
// was skipped.
type RunResult struct {
	Payout     *models.Payout         `json:"payout,omitempty"`
	Schedule   *models.PayoutSchedule `json:"schedule"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

// Skip reasons
const (
	SkipOnHold          = "on_hold"
	SkipNothingToSettle = "nothing_to_settle"
	SkipBelowThreshold  = "below_threshold"
	SkipNetNotPositive  = "net_not_positive"
)

// Pair identifies one business+processor settlement stream.
type Pair struct {
	BusinessID  uint `json:"business_id"`
	ProcessorID uint `json:"processor_id"`
}

// ScheduleUpdate changes a schedule; nil fields are kept.
type ScheduleUpdate struct {
	Frequency        *string `json:"frequency"`
	MinimumThreshold *int64  `json:"minimum_threshold"`
	MaxHoldDays      *int    `json:"max_hold_days"`
	OnHold           *bool   `json:"on_hold"`
	HoldReason       *string `json:"hold_reason"`
	NotifyOnPayout   *bool   `json:"notify_on_payout"`
}

// StatusUpdate is reported by the disbursement side.
type StatusUpdate struct {
	Status                string `json:"status"`
	ProviderTransactionID string `json:"provider_transaction_id"`
	FailureReason         string `json:"failure_reason"`
}

// ReportLine is one captured payment in a settlement report.
type ReportLine struct {
	PaymentID    string                  `json:"payment_id"`
	OrderID      string                  `json:"order_id"`
	CapturedAt   time.Time               `json:"captured_at"`
	ProcessorID  uint                    `json:"processor_id"`
	Variant      models.ProcessorVariant `json:"variant"`
	Currency     string                  `json:"currency"`
	Gross        int64                   `json:"gross"`
	ProcessorFee int64                   `json:"processor_fee"`
	PlatformFee  int64                   `json:"platform_fee"`
	Net          int64                   `json:"net"`
	Settled      bool                    `json:"settled"`
	PayoutID     *uint                   `json:"payout_id,omitempty"`
}

// Report lists captured payments over [From, To) with totals.
type Report struct {
	BusinessID   uint         `json:"business_id"`
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
	Lines        []ReportLine `json:"lines"`
	Gross        int64        `json:"gross"`
	ProcessorFee int64        `json:"processor_fee"`
	PlatformFee  int64        `json:"platform_fee"`
	Net          int64        `json:"net"`
}
