package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"menupay/internal/models"
)

var (
	ErrUnsupportedVariant = errors.New("unsupported processor variant")
	ErrMalformedEvent     = errors.New("malformed webhook event")
	ErrInvalidCredentials = errors.New("invalid processor credentials")
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindTimeout        ErrorKind = "timeout"
	KindNetwork        ErrorKind = "network"
	KindProvider       ErrorKind = "provider"
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Error is an adapter-level failure carrying provider context. It is logged
// by the orchestrators and never returned past them.
type Error struct {
	Variant    models.ProcessorVariant
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s gateway %s error (%s): %s", e.Variant, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s gateway %s error: %s", e.Variant, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// transportError wraps a failure that happened before a provider answered.
func transportError(v models.ProcessorVariant, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Variant: v, Kind: kind, Message: err.Error(), Err: err}
}

// statusError classifies a non-2xx provider answer.
func statusError(v models.ProcessorVariant, status int, code, message string) *Error {
	kind := KindProvider
	switch {
	case status == 401 || status == 403:
		kind = KindAuth
	case status == 408 || status == 504:
		kind = KindTimeout
	case status >= 400 && status < 500 && status != 429:
		kind = KindInvalidRequest
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	return &Error{Variant: v, Kind: kind, StatusCode: status, Code: code, Message: message}
}

func invalidSignature(v models.ProcessorVariant, reason string) error {
	return fmt.Errorf("%w: %s %s", models.ErrInvalidSignature, v, reason)
}
