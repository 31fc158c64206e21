package validator

import (
	"strings"
	"time"

	"github.com/EduOps-2025/school-service/internal/models"
)

// BusinessValidator handles business rule validation that spans more
// than one field or needs current state
type BusinessValidator struct {
	validator *Validator
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{validator: New()}
}

// Validate validates struct-level rules for any request
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validator.Validate(s)
	if err == nil {
		return nil
	}
	if ve, ok := err.(ValidationErrors); ok {
		return ve
	}
	return ValidationErrors{{Message: err.Error(), Rule: "struct"}}
}

// ValidateGenerateBatch validates a promo code generation request
// against the batch limits
func (bv *BusinessValidator) ValidateGenerateBatch(quantity, usageLimit int, expiry *time.Time) ValidationErrors {
	var errors ValidationErrors

	if quantity < 1 || quantity > models.MaxGenerateQuantity {
		errors = append(errors, ValidationError{
			Field:   "quantity",
			Message: "must be between 1 and 1000",
			Value:   quantity,
			Rule:    "code_quantity",
		})
	}

	if usageLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "usage_limit",
			Message: "must be at least 1",
			Value:   usageLimit,
			Rule:    "min",
		})
	}

	if expiry != nil && expiry.Before(time.Now().Truncate(24*time.Hour)) {
		errors = append(errors, ValidationError{
			Field:   "expiry_date",
			Message: "must not be in the past",
			Value:   expiry,
			Rule:    "future_date",
		})
	}

	return errors
}

// ValidateRedemption validates the redemption preconditions against the
// current code state
func (bv *BusinessValidator) ValidateRedemption(code *models.PromoCode, now time.Time) ValidationErrors {
	var errors ValidationErrors

	if code.IsExhausted() {
		errors = append(errors, ValidationError{
			Field:   "code",
			Message: "usage limit reached",
			Value:   code.Code,
			Rule:    "usage_limit",
		})
	}

	if code.IsExpired(now) {
		errors = append(errors, ValidationError{
			Field:   "code",
			Message: "code has expired",
			Value:   code.Code,
			Rule:    "expiry",
		})
	}

	return errors
}

// ValidateStudentData validates the student details captured on the
// public redemption form
func (bv *BusinessValidator) ValidateStudentData(name, email string) ValidationErrors {
	var errors ValidationErrors

	if strings.TrimSpace(name) == "" {
		errors = append(errors, ValidationError{
			Field:   "student_name",
			Message: "is required",
			Rule:    "required",
		})
	}

	if strings.TrimSpace(email) == "" {
		errors = append(errors, ValidationError{
			Field:   "student_email",
			Message: "is required",
			Rule:    "required",
		})
	}

	return errors
}
