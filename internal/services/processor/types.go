package processor

import (
	"menupay/internal/services/gateway"

	"github.com/shopspring/decimal"
)

// CreateRequest registers a new processor config for a business.
type CreateRequest struct {
	BusinessID         uint
	Variant            string
	DisplayName        string
	Priority           int
	FeePercent         decimal.Decimal
	FixedFee           int64
	SettlementSchedule string
	Credentials        gateway.Credentials
}

// UpdateRequest changes an existing config. Nil fields are left untouched;
// new credentials send the config back to verification.
type UpdateRequest struct {
	DisplayName        *string
	Priority           *int
	FeePercent         *decimal.Decimal
	FixedFee           *int64
	SettlementSchedule *string
	Credentials        *gateway.Credentials
}
