package errors

import "errors"

// Domain errors, grouped by how they propagate: validation stays at the
// input boundary, transient failures are retried by pollers, integrity
// failures are fatal to the current checkout.
var (
	ErrValidation       = errors.New("invalid input")
	ErrTransient        = errors.New("transient failure")
	ErrIntegrity        = errors.New("integrity violation")
	ErrMissingTimestamp = errors.New("missing createdAt timestamp")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrConflict         = errors.New("conflicting configuration")
	ErrNotFound         = errors.New("resource not found")
)

// AppError carries a human-readable message alongside the sentinel it wraps.
type AppError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(message string, err error) *AppError {
	return &AppError{Message: message, Err: err}
}

// Common error constructors
func Validation(message string) *AppError {
	return NewAppError(message, ErrValidation)
}

func Transient(message string, cause error) *AppError {
	return NewAppError(message, errors.Join(ErrTransient, cause))
}

func Integrity(message string) *AppError {
	return NewAppError(message, ErrIntegrity)
}

func MissingTimestamp(orderID string) *AppError {
	return NewAppError("createdAt is null for order "+orderID, ErrMissingTimestamp)
}

func UnsupportedChain(message string) *AppError {
	return NewAppError(message, ErrUnsupportedChain)
}

func Conflict(message string) *AppError {
	return NewAppError(message, ErrConflict)
}
