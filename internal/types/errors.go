package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for navigator errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED  ErrorCode = "DB_OPEN_FAILED"
	DB_QUERY_FAILED ErrorCode = "DB_QUERY_FAILED"
	DB_LOCKED       ErrorCode = "DB_LOCKED"
	DB_CORRUPT      ErrorCode = "DB_CORRUPT"
)

// Transformation engine error codes
const (
	ENGINE_SPAWN_FAILED     ErrorCode = "ENGINE_SPAWN_FAILED"
	ENGINE_EXECUTION_FAILED ErrorCode = "ENGINE_EXECUTION_FAILED"
	ENGINE_TIMEOUT          ErrorCode = "ENGINE_TIMEOUT"
)

// Initialization error codes
const (
	INIT_INCOMPLETE ErrorCode = "INIT_INCOMPLETE"
	INIT_TIMEOUT    ErrorCode = "INIT_TIMEOUT"
	INIT_LOCKED     ErrorCode = "INIT_LOCKED"
)

// Checkpoint error codes
const (
	CHECKPOINT_WRITE_FAILED ErrorCode = "CHECKPOINT_WRITE_FAILED"
	CHECKPOINT_READ_FAILED  ErrorCode = "CHECKPOINT_READ_FAILED"
	CHECKPOINT_CORRUPT      ErrorCode = "CHECKPOINT_CORRUPT"
)

// Pipeline error codes
const (
	STAGE_EXECUTION_FAILED  ErrorCode = "STAGE_EXECUTION_FAILED"
	STAGE_VALIDATION_FAILED ErrorCode = "STAGE_VALIDATION_FAILED"
	STAGE_GRAPH_INVALID     ErrorCode = "STAGE_GRAPH_INVALID"
	YEAR_RANGE_INVALID      ErrorCode = "YEAR_RANGE_INVALID"
)

// Resilience error codes
const (
	CIRCUIT_OPEN       ErrorCode = "CIRCUIT_OPEN"
	RETRY_EXHAUSTED    ErrorCode = "RETRY_EXHAUSTED"
	RESOURCE_EXHAUSTED ErrorCode = "RESOURCE_EXHAUSTED"
)

// Severity classifies how serious a failure is for the run that hit it.
type Severity string

const (
	SeverityCritical    Severity = "CRITICAL"
	SeverityError       Severity = "ERROR"
	SeverityRecoverable Severity = "RECOVERABLE"
	SeverityWarning     Severity = "WARNING"
)

// Category names the subsystem or failure class an error belongs to.
// The resilience classifier maps every error into exactly one category.
type Category string

const (
	CategoryDatabase      Category = "DATABASE"
	CategoryConfiguration Category = "CONFIGURATION"
	CategoryDataQuality   Category = "DATA_QUALITY"
	CategoryResource      Category = "RESOURCE"
	CategoryNetwork       Category = "NETWORK"
	CategoryDependency    Category = "DEPENDENCY"
	CategoryState         Category = "STATE"
)

// NavigatorError represents a structured error with error code, message, and
// optional cause. It supports error wrapping, retryability hints for the
// resilience layer, and a context map for run/year/stage details.
type NavigatorError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
	Context   map[string]any
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *NavigatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *NavigatorError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a NavigatorError with the same Code.
func (e *NavigatorError) Is(target error) bool {
	var navErr *NavigatorError
	if errors.As(target, &navErr) {
		return e.Code == navErr.Code
	}
	return false
}

// WithContext attaches a key/value pair to the error's context map and
// returns the error for chaining. Context keys typically name the year,
// stage, operation, or checkpoint an error occurred in.
func (e *NavigatorError) WithContext(key string, value any) *NavigatorError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a new non-retryable NavigatorError with the given code and message.
func NewError(code ErrorCode, message string) *NavigatorError {
	return &NavigatorError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable NavigatorError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., database lock conflicts).
func NewRetryableError(code ErrorCode, message string) *NavigatorError {
	return &NavigatorError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable NavigatorError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *NavigatorError {
	return &NavigatorError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a new retryable NavigatorError that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *NavigatorError {
	return &NavigatorError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a NavigatorError.
// Returns an empty code and false otherwise.
func CodeOf(err error) (ErrorCode, bool) {
	var navErr *NavigatorError
	if errors.As(err, &navErr) {
		return navErr.Code, true
	}
	return "", false
}
