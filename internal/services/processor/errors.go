package processor

import "errors"

var (
	ErrInvalidVariant        = errors.New("unsupported processor variant")
	ErrMissingCredentials    = errors.New("processor credentials are incomplete")
	ErrProcessorDisconnected = errors.New("processor is disconnected")
	ErrInvalidFee            = errors.New("fee must not be negative")
	ErrInvalidSchedule       = errors.New("invalid settlement schedule")
)
