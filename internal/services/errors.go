package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing input, including duplicate registration.
	ErrValidation = errors.New("validation error")

	// ErrInvalidCredentials is returned when login email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned for malformed, expired or forged tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorageUnavailable wraps failures of the underlying table store.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(message string) error {
	return &ValidationError{Message: message}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
