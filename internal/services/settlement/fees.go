package settlement

import (
	"menupay/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeCalculator computes per-payment fees in minor units. Fractions always
// round up.
type FeeCalculator struct {
	platformPercent decimal.Decimal
	platformFixed   int64
}

func NewFeeCalculator(platformPercent decimal.Decimal, platformFixed int64) *FeeCalculator {
	return &FeeCalculator{platformPercent: platformPercent, platformFixed: platformFixed}
}

// ProcessorFee is charged on the captured amount, refunds notwithstanding.
func (fc *FeeCalculator) ProcessorFee(cfg *models.PaymentProcessorConfig, amount int64) int64 {
	return percentOf(amount, cfg.FeePercent) + cfg.FixedFee
}

// PlatformFee is charged on what the business actually keeps.
func (fc *FeeCalculator) PlatformFee(gross int64) int64 {
	return percentOf(gross, fc.platformPercent) + fc.platformFixed
}

func percentOf(amount int64, pct decimal.Decimal) int64 {
	if pct.IsZero() || amount == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Ceil().IntPart()
}
