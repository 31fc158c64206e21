package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single failed rule on a request field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all failed rules for a request
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	messages := make([]string, len(e))
	for i, err := range e {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// ToValidationErrors converts go-playground field errors into the
// internal representation
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{
			Field:   "",
			Message: err.Error(),
			Rule:    "struct",
		}}
	}

	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, ValidationError{
			Field:   fe.Field(),
			Message: getErrorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return result
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "code_prefix":
		return "must contain only letters and digits, up to 20 characters"
	case "code_quantity":
		return "must be between 1 and 1000"
	case "future_date":
		return "must be in the future"
	case "class_name":
		return "must be between 1 and 200 characters"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

var codePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9]*$`)

// Validator wraps struct validation with the custom school rules
// registered
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate validates a request struct, returning ValidationErrors when
// any rule fails
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerRules() {
	// Class name validation (1-200 characters)
	v.validate.RegisterValidation("class_name", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return len(name) >= 1 && len(name) <= 200
	})

	// Promo code prefix validation (alphanumeric, max 20 characters)
	v.validate.RegisterValidation("code_prefix", func(fl validator.FieldLevel) bool {
		prefix := fl.Field().String()
		return len(prefix) <= 20 && codePrefixPattern.MatchString(prefix)
	})

	// Batch quantity validation (1-1000 codes per request)
	v.validate.RegisterValidation("code_quantity", func(fl validator.FieldLevel) bool {
		quantity := fl.Field().Int()
		return quantity >= 1 && quantity <= 1000
	})

	// Expiry date validation (must be in future)
	v.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		// Check if field can be nil and is nil (for pointer types)
		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true // Optional field
		}

		// Handle both *time.Time and time.Time
		var date time.Time
		if field.Kind() == reflect.Ptr {
			date = field.Elem().Interface().(time.Time)
		} else {
			date = field.Interface().(time.Time)
		}

		return date.After(time.Now())
	})
}
