// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeIllegalTransition    ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeSelectionInvalid     ErrorCode = "SELECTION_INVALID"
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeAuthorization        ErrorCode = "AUTHORIZATION_ERROR"
	ErrCodeStaleWrite           ErrorCode = "STALE_WRITE"
	ErrCodeConsistencyViolation ErrorCode = "CONSISTENCY_VIOLATION"
	ErrCodeInvalidDecision      ErrorCode = "INVALID_DECISION"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	Field      string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// IllegalTransition reports a command that is not valid from the entity's
// current state. Nothing has been mutated when it is returned.
func IllegalTransition(entity, from, attempted string) *AppError {
	return New(ErrCodeIllegalTransition,
		fmt.Sprintf("%s cannot transition from %q via %q", entity, from, attempted))
}

// SelectionInvalid names the offending selection field.
func SelectionInvalid(field, message string) *AppError {
	e := New(ErrCodeSelectionInvalid, message)
	e.Field = field
	return e
}

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func Authorization(message string) *AppError {
	return New(ErrCodeAuthorization, message)
}

// StaleWrite signals a concurrent-conflict on the same entity; the caller
// should reload and retry against the latest state.
func StaleWrite(entity string) *AppError {
	return New(ErrCodeStaleWrite, fmt.Sprintf("%s was modified concurrently, retry against latest state", entity))
}

// ConsistencyViolation is fatal at creation time: the entity must never be
// partially committed.
func ConsistencyViolation(message string) *AppError {
	return New(ErrCodeConsistencyViolation, message)
}

func InvalidDecision(got string) *AppError {
	return New(ErrCodeInvalidDecision, fmt.Sprintf("decision must be favor_client or favor_artist, got %q", got))
}

func NotFound(entity string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", entity))
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAuthorization:
		return http.StatusForbidden
	case ErrCodeIllegalTransition, ErrCodeStaleWrite:
		return http.StatusConflict
	case ErrCodeSelectionInvalid, ErrCodeValidation, ErrCodeConsistencyViolation, ErrCodeInvalidDecision:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsIllegalTransition(err error) bool { return Is(err, ErrCodeIllegalTransition) }
func IsSelectionInvalid(err error) bool  { return Is(err, ErrCodeSelectionInvalid) }
func IsValidation(err error) bool        { return Is(err, ErrCodeValidation) }
func IsStaleWrite(err error) bool        { return Is(err, ErrCodeStaleWrite) }
func IsNotFound(err error) bool          { return Is(err, ErrCodeNotFound) }
