package payment

import "errors"

var (
	ErrInvalidAmount   = errors.New("order amount must be positive")
	ErrInvalidCurrency = errors.New("order currency is required")
)
