package settlement

import "errors"

var (
	ErrInvalidPayoutStatus = errors.New("invalid payout status")
	ErrInvalidSchedule     = errors.New("invalid payout schedule")
	ErrInvalidRange        = errors.New("invalid report range")
)
