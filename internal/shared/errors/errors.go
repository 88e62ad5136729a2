package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeTransport indicates the feed subscription failed
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeDecode indicates a frame could not be decompressed or parsed
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeValidation indicates a message was rejected by its schema
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePrecondition indicates a required entity or field was missing
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypeStore indicates a database operation failed
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method on the ops server
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	// ErrorTypeInternal indicates an unexpected failure
	ErrorTypeInternal ErrorType = "internal"
)

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
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

// WrapTransport wraps an error as a transport error
func WrapTransport(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// Decodef creates a decode error with formatting
func Decodef(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeDecode,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapDecode wraps an error as a decode error
func WrapDecode(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeDecode,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error
func Validation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// Validationf creates a validation error with formatting
func Validationf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Err:     err,
	}
}

// Preconditionf creates a precondition error with formatting
func Preconditionf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypePrecondition,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapStore wraps an error as a store error
func WrapStore(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeStore,
		Message: message,
		Err:     err,
	}
}

// Internalf creates an internal error with formatting
func Internalf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// MethodNotAllowed creates a method not allowed error
func MethodNotAllowed(method string) error {
	return &AppError{
		Type:    ErrorTypeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", method),
	}
}

// GetType returns the error type of an error
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsRejection reports whether err describes a message the pipeline refuses
// rather than a failure of the pipeline itself.
func IsRejection(err error) bool {
	switch GetType(err) {
	case ErrorTypeDecode, ErrorTypeValidation, ErrorTypePrecondition:
		return true
	default:
		return false
	}
}
