package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies application errors.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeUnavailable    ErrorType = "UNAVAILABLE_ERROR"
	ErrorTypeConflict       ErrorType = "CONFLICT_ERROR"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Replication errors
var (
	ErrNotConnected     = errors.New("store not connected")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidFilter    = errors.New("invalid collection filter")
	ErrJournalDisabled  = errors.New("pass journal disabled")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// AppError represents a custom application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewInfrastructureError creates an infrastructure error
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message, http.StatusInternalServerError)
}

// NewUnavailableError creates an error for a store that cannot be reached.
func NewUnavailableError(store string) *AppError {
	return NewAppError(ErrorTypeUnavailable, fmt.Sprintf("%s store unavailable", store), http.StatusServiceUnavailable).
		WithCause(ErrNotConnected).
		WithDetail("store", store)
}

// NewDuplicateKeyError wraps a driver duplicate-key failure.
func NewDuplicateKeyError(collection string, key string, cause error) *AppError {
	wrapped := ErrDuplicateKey
	if cause != nil {
		wrapped = fmt.Errorf("%w: %v", ErrDuplicateKey, cause)
	}
	return NewAppError(ErrorTypeConflict, fmt.Sprintf("document %s already exists in %s", key, collection), http.StatusConflict).
		WithCause(wrapped).
		WithDetail("collection", collection).
		WithDetail("key", key)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// IsDuplicateKey reports whether err stems from a duplicate-key write.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsNotConnected reports whether err stems from an unavailable store.
func IsNotConnected(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type == ErrorTypeUnavailable {
		return true
	}
	return errors.Is(err, ErrNotConnected)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrInvalidFilter)
}

// CodeOf returns the code attached to err, or fallback when none is set.
func CodeOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return fallback
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPCode != 0 {
		return appErr.HTTPCode
	}
	if errors.Is(err, ErrJournalDisabled) || errors.Is(err, ErrNotConnected) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
