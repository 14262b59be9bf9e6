package refund

import "errors"

var (
	ErrInvalidAmount    = errors.New("refund amount must be positive")
	ErrProviderRejected = errors.New("refund rejected by processor")
)
