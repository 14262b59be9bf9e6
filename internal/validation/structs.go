package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"menupay/internal/models"

	"github.com/go-playground/validator/v10"
)

// Limits
const (
	MaxDescriptionLength = 500
	MaxReasonLength      = 255
	MaxReportDays        = 366
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		return models.ProcessorVariant(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
			return true
		}
		return false
	})
	return validate
}

// Struct checks the `validate` tags of s and records one error per field,
// keyed by its JSON name.
func (v *Validator) Struct(s interface{}) {
	err := structValidator.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.AddError("body", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		v.AddError(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "variant":
		return "must be one of: card upi wallet"
	case "frequency":
		return "must be one of: daily weekly monthly"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uppercase":
		return "must be upper case"
	}
	return "is invalid"
}
