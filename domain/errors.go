package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Invalid is shorthand for a validation failure.
func Invalid(message string) *Error {
	return NewError(ErrCodeInvalid, message)
}

// Forbidden is shorthand for a permission failure.
func Forbidden(message string) *Error {
	return NewError(ErrCodeForbidden, message)
}

// Common domain errors.
var (
	ErrUserNotFound        = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound        = NewError(ErrCodeNotFound, "task not found")
	ErrTaskChanged         = NewError(ErrCodeConflict, "task was changed after the buffered mutation")
	ErrProfileNotFound     = NewError(ErrCodeNotFound, "telegram profile not found")
	ErrLinkTokenNotFound   = NewError(ErrCodeNotFound, "telegram link token not found or already used")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
	ErrTelegramUnavailable = NewError(ErrCodeInternal, "telegram is not configured")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
