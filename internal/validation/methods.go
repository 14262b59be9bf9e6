package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validator collects field errors for one request.
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records message for field unless the field already failed.
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Required checks if a string is not empty
func (v *Validator) Required(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

// MaxLength checks if a string has at most n characters
func (v *Validator) MaxLength(field string, value string, n int) {
	v.Check(len(value) <= n, field, fmt.Sprintf("must not be more than %d characters long", n))
}

// Percent checks a fee percentage lies in [0, 100].
func (v *Validator) Percent(field string, value decimal.Decimal) {
	v.Check(!value.IsNegative() && value.LessThanOrEqual(decimal.NewFromInt(100)), field, "must be between 0 and 100")
}

// Period checks that from is before to and the span is at most max.
func (v *Validator) Period(field string, from, to time.Time, max time.Duration) {
	if !from.Before(to) {
		v.AddError(field, "start must be before end")
		return
	}
	v.Check(to.Sub(from) <= max, field, fmt.Sprintf("must not span more than %d days", int(max.Hours()/24)))
}
