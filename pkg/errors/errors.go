// Package errors defines the application error carried from the service
// layer to the HTTP response.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels reachable through errors.Is on any AppError of the matching kind.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrBadRequest             = errors.New("bad request")
	ErrConflict               = errors.New("resource conflict")
	ErrInternal               = errors.New("internal server error")
	ErrValidation             = errors.New("validation error")
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrIntegrityConflict      = errors.New("integrity conflict")
)

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

type kind struct {
	sentinel error
	code     string
	status   int
}

var (
	kindNotFound          = kind{ErrNotFound, "NOT_FOUND", http.StatusNotFound}
	kindUnauthorized      = kind{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized}
	kindForbidden         = kind{ErrForbidden, "FORBIDDEN", http.StatusForbidden}
	kindBadRequest        = kind{ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest}
	kindConflict          = kind{ErrConflict, "CONFLICT", http.StatusConflict}
	kindInternal          = kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError}
	kindValidation        = kind{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest}
	kindTokenExpired      = kind{ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized}
	kindTokenInvalid      = kind{ErrTokenInvalid, "TOKEN_INVALID", http.StatusUnauthorized}
	kindInsufficientStock = kind{ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity}
	kindInvalidTransition = kind{ErrInvalidStateTransition, "INVALID_STATE_TRANSITION", http.StatusConflict}
	kindIntegrity         = kind{ErrIntegrityConflict, "INTEGRITY_CONFLICT", http.StatusConflict}
)

func (k kind) new(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        k.sentinel,
		Code:       k.code,
		Message:    message,
		StatusCode: k.status,
		Details:    details,
	}
}

func NotFound(resource string) *AppError {
	return kindNotFound.new(resource+" not found", nil)
}

func Unauthorized(message string) *AppError { return kindUnauthorized.new(message, nil) }
func Forbidden(message string) *AppError    { return kindForbidden.new(message, nil) }
func BadRequest(message string) *AppError   { return kindBadRequest.new(message, nil) }
func Conflict(message string) *AppError     { return kindConflict.new(message, nil) }
func Internal(message string) *AppError     { return kindInternal.new(message, nil) }

// Validation carries one message per offending field.
func Validation(details map[string]string) *AppError {
	return kindValidation.new("validation failed", details)
}

// InsufficientStock is returned when an operation needs more stock than is available.
func InsufficientStock(message string, details map[string]string) *AppError {
	return kindInsufficientStock.new(message, details)
}

// InvalidStateTransition is returned when a document cannot move to the requested status.
func InvalidStateTransition(message string, details map[string]string) *AppError {
	return kindInvalidTransition.new(message, details)
}

// IntegrityConflict signals a concurrent modification; the caller may retry.
func IntegrityConflict(message string) *AppError {
	return kindIntegrity.new(message, nil)
}

func TokenExpired() *AppError { return kindTokenExpired.new("token has expired", nil) }
func TokenInvalid() *AppError { return kindTokenInvalid.new("invalid token", nil) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
