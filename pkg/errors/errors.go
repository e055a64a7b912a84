package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"
	ErrConfigSave  ErrorCode = "CONFIG_SAVE"

	// Pipeline errors
	ErrMalformedName     ErrorCode = "MALFORMED_NAME"
	ErrStaging           ErrorCode = "STAGING"
	ErrExtraction        ErrorCode = "EXTRACTION"
	ErrAssembly          ErrorCode = "ASSEMBLY"
	ErrRelocation        ErrorCode = "RELOCATION"
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// FileSystem errors
	ErrMove       ErrorCode = "MOVE"
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrDirCreate  ErrorCode = "DIR_CREATE"

	// Watcher errors
	ErrWatch ErrorCode = "WATCH"
)

// SymblinkError represents a structured error with code and details
type SymblinkError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *SymblinkError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SymblinkError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *SymblinkError) Is(target error) bool {
	var targetErr *SymblinkError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new SymblinkError with the given code and message
func New(code ErrorCode, message string) *SymblinkError {
	return &SymblinkError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new SymblinkError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SymblinkError {
	return &SymblinkError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a SymblinkError. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *SymblinkError {
	if err == nil {
		return nil
	}
	return &SymblinkError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *SymblinkError {
	if err == nil {
		return nil
	}
	return &SymblinkError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *SymblinkError) WithDetail(key string, value interface{}) *SymblinkError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *SymblinkError) WithDetails(details map[string]interface{}) *SymblinkError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code. Only the
// outermost SymblinkError in the chain is considered.
func IsErrorCode(err error, code ErrorCode) bool {
	var symErr *SymblinkError
	if errors.As(err, &symErr) {
		return symErr.Code == code
	}
	return false
}

// HasErrorCode reports whether any SymblinkError in the chain carries code.
func HasErrorCode(err error, code ErrorCode) bool {
	return errors.Is(err, &SymblinkError{Code: code})
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a SymblinkError
func GetErrorCode(err error) ErrorCode {
	var symErr *SymblinkError
	if errors.As(err, &symErr) {
		return symErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a SymblinkError
func GetErrorDetails(err error) map[string]interface{} {
	var symErr *SymblinkError
	if errors.As(err, &symErr) {
		return symErr.Details
	}
	return nil
}
