package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all services. Handlers map these onto HTTP
// status codes.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrValidationFailed = errors.New("validation failed")

	// Entity not-found errors, all unwrap to ErrNotFound
	ErrClassNotFound         = fmt.Errorf("class %w", ErrNotFound)
	ErrStudentNotFound       = fmt.Errorf("student %w", ErrNotFound)
	ErrTeacherNotFound       = fmt.Errorf("teacher %w", ErrNotFound)
	ErrPromoCodeNotFound     = fmt.Errorf("promo code %w", ErrNotFound)
	ErrWizardSessionNotFound = fmt.Errorf("wizard session %w", ErrNotFound)

	// Promo code errors
	ErrInvalidCode      = errors.New("invalid promo code")
	ErrCodeLimitReached = errors.New("promo code usage limit reached")
	ErrCodeExpired      = errors.New("promo code has expired")
	ErrGenerationFailed = errors.New("promo code generation failed")

	// Enrollment errors
	ErrDuplicateEnrollment = errors.New("student already enrolled in class")

	// Account errors
	ErrDuplicateUser = errors.New("user already exists")

	// Wizard errors
	ErrWizardStepOrder = errors.New("wizard step out of order")
)

// PermissionError carries the context of a denied operation
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// NewPermissionError creates a permission error for a denied operation
func NewPermissionError(userID string, resourceID uint, resource, action, reason string) error {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
