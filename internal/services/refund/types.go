package refund

import (
	"time"

	"menupay/internal/models"
)

// RefundResult describes a refund after the processor answered.
type RefundResult struct {
	RefundID string          `json:"refund_id"`
	Amount   int64           `json:"amount"`
	Status   string          `json:"status"`
	Payment  *models.Payment `json:"payment"`
}

type Config struct {
	AdapterTimeout time.Duration
}
