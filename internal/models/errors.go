package models

import "errors"

// Payment core errors shared by the services and the HTTP layer.
var (
	ErrNoActiveProcessor      = errors.New("no active payment processor")
	ErrAllProcessorsExhausted = errors.New("all payment processors exhausted")
	ErrOrderAlreadyPaid       = errors.New("order already paid")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrRefundExceedsBalance   = errors.New("refund exceeds refundable balance")
	ErrScheduleLocked         = errors.New("payout schedule is locked")
)

// Lookup errors
var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrProcessorNotFound = errors.New("payment processor not found")
	ErrPayoutNotFound    = errors.New("payout not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrRefundNotFound    = errors.New("refund not found")
)
