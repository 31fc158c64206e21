package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// Implementations translate their driver's not-found error into this
// sentinel so services never import gorm directly for error checks.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey is returned when an insert or update violates a
// unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports whether err means a unique constraint
// was violated.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey)
}
