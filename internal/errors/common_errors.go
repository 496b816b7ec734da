package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeInvalidRange ErrorType = "INVALID_RANGE"
	ErrTypeSource       ErrorType = "SOURCE"
	ErrTypeParsing      ErrorType = "PARSING"
	ErrTypePersistence  ErrorType = "PERSISTENCE"
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeConfig       ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err, or anything it wraps, is an AppError of type t
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == t
}

// Helper functions for common error types

// NewInvalidRangeError is returned when a requested time range cannot form a timeline
func NewInvalidRangeError(message string) *AppError {
	return NewAppError(ErrTypeInvalidRange, message, nil)
}

// NewSourceError wraps a failure to read from a source table
func NewSourceError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSource, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewPersistenceError wraps a failed artifact or table write
func NewPersistenceError(message string, cause error) *AppError {
	return NewAppError(ErrTypePersistence, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
