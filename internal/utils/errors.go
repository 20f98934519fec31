// Package contextutils provides error handling utilities and standardized error types
// for consistent error management across the EvolveEdu backend.
package contextutils

import (
	"context"
	"fmt"
	"strings"
)

// ErrorCode represents a standardized error code for API responses
type ErrorCode string

const (
	// Database error codes

	ErrorCodeDatabaseConnection  ErrorCode = "DATABASE_CONNECTION_ERROR"
	ErrorCodeDatabaseQuery       ErrorCode = "DATABASE_QUERY_ERROR"
	ErrorCodeDatabaseTransaction ErrorCode = "DATABASE_TRANSACTION_ERROR"
	ErrorCodeRecordNotFound      ErrorCode = "RECORD_NOT_FOUND"
	ErrorCodeRecordExists        ErrorCode = "RECORD_ALREADY_EXISTS"
	ErrorCodeForeignKeyViolation ErrorCode = "FOREIGN_KEY_VIOLATION"

	// Validation error codes

	ErrorCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorCodeMissingRequired  ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrorCodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Service error codes

	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout            ErrorCode = "REQUEST_TIMEOUT"
	ErrorCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrorCodeConflict           ErrorCode = "CONFLICT"

	// Inference error codes

	// ErrorCodeInferenceUnavailable indicates that the hosted model endpoint could not
	// produce text: retry budget exhausted, upstream rejection, or transport failure.
	ErrorCodeInferenceUnavailable ErrorCode = "INFERENCE_UNAVAILABLE"
	// ErrorCodeInferenceResponseInvalid indicates that the model endpoint replied with
	// a body the client could not extract generated text from
	ErrorCodeInferenceResponseInvalid ErrorCode = "INFERENCE_RESPONSE_INVALID"
	ErrorCodeInferenceConfigInvalid   ErrorCode = "INFERENCE_CONFIG_INVALID"
	// ErrorCodeInferenceAtCapacity indicates that the concurrent-request gate is saturated
	ErrorCodeInferenceAtCapacity ErrorCode = "INFERENCE_AT_CAPACITY"

	// Email error codes

	ErrorCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
)

// SeverityLevel represents the severity of an error for logging and monitoring
type SeverityLevel string

const (
	SeverityDebug SeverityLevel = "debug"
	SeverityInfo  SeverityLevel = "info"
	SeverityWarn  SeverityLevel = "warn"
	SeverityError SeverityLevel = "error"
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code so sentinels survive wrapping under errors.Is
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// Sentinel errors. Services return these (usually through WrapError) and
// callers match with errors.Is; the middleware layer maps codes to HTTP
// statuses.
var (
	ErrDatabaseConnection  = NewAppError(ErrorCodeDatabaseConnection, SeverityError, "Database connection failed", "")
	ErrDatabaseQuery       = NewAppError(ErrorCodeDatabaseQuery, SeverityError, "Database query failed", "")
	ErrDatabaseTransaction = NewAppError(ErrorCodeDatabaseTransaction, SeverityError, "Database transaction failed", "")
	ErrRecordNotFound      = NewAppError(ErrorCodeRecordNotFound, SeverityInfo, "Record not found", "")
	ErrRecordExists        = NewAppError(ErrorCodeRecordExists, SeverityInfo, "Record already exists", "")
	ErrForeignKeyViolation = NewAppError(ErrorCodeForeignKeyViolation, SeverityError, "Foreign key constraint violation", "")

	ErrInvalidInput     = NewAppError(ErrorCodeInvalidInput, SeverityWarn, "Invalid input", "")
	ErrMissingRequired  = NewAppError(ErrorCodeMissingRequired, SeverityWarn, "Missing required field", "")
	ErrInvalidFormat    = NewAppError(ErrorCodeInvalidFormat, SeverityWarn, "Invalid format", "")
	ErrValidationFailed = NewAppError(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", "")

	ErrServiceUnavailable = NewAppError(ErrorCodeServiceUnavailable, SeverityError, "Service unavailable", "")
	ErrTimeout            = NewAppError(ErrorCodeTimeout, SeverityWarn, "Request timeout", "")
	ErrRateLimit          = NewAppError(ErrorCodeRateLimit, SeverityWarn, "Rate limit exceeded", "")
	ErrInternalError      = NewAppError(ErrorCodeInternalError, SeverityError, "Internal server error", "")
	ErrConflict           = NewAppError(ErrorCodeConflict, SeverityWarn, "Operation conflicts with current state", "")

	// ErrInferenceUnavailable is the failure sentinel for the generation pipeline.
	// Every upstream failure mode (503 budget exhausted, non-200 rejection, transport
	// fault on the final attempt, unusable response body) collapses into this error so
	// the fallback generator uniformly takes over. Test with errors.Is.
	ErrInferenceUnavailable     = NewAppError(ErrorCodeInferenceUnavailable, SeverityWarn, "Inference endpoint unavailable", "")
	ErrInferenceResponseInvalid = NewAppError(ErrorCodeInferenceResponseInvalid, SeverityWarn, "Inference response invalid", "")
	ErrInferenceConfigInvalid   = NewAppError(ErrorCodeInferenceConfigInvalid, SeverityError, "Inference configuration invalid", "")
	ErrInferenceAtCapacity      = NewAppError(ErrorCodeInferenceAtCapacity, SeverityWarn, "Inference service at capacity", "")

	ErrEmailSendFailed = NewAppError(ErrorCodeEmailSendFailed, SeverityError, "Email send failed", "")
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
		Cause:    cause,
	}
}

// wrapWithMessage layers a message onto err. An AppError keeps its code and
// severity; anything else becomes an internal error. The cause passed in may
// differ from err when the caller already rewrapped it with fmt.Errorf.
func wrapWithMessage(err error, message string, cause error) error {
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:     appErr.Code,
			Severity: appErr.Severity,
			Message:  message,
			Details:  appErr.Error(),
			Cause:    cause,
		}
	}
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  message,
		Details:  err.Error(),
		Cause:    cause,
	}
}

// WrapError wraps an error with additional context, preserving AppError structure if possible
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return wrapWithMessage(err, context, err)
}

// WrapErrorf wraps an error with formatted context. A %w verb routes through
// fmt.Errorf so the formatted error becomes the cause chain.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	if strings.Contains(format, "%w") {
		wrappedErr := fmt.Errorf(format, args...)
		return wrapWithMessage(err, wrappedErr.Error(), wrappedErr)
	}

	return wrapWithMessage(err, fmt.Sprintf(format, args...), err)
}

// ErrorWithContextf creates a new internal error with a formatted message
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsError checks if an error matches a specific AppError type
func IsError(err error, target *AppError) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == target.Code
	}
	return false
}

// AsError attempts to convert an error to an AppError
func AsError(err error, target **AppError) bool {
	if appErr, ok := err.(*AppError); ok {
		*target = appErr
		return true
	}
	return false
}

// GetErrorCode returns the error code, or INTERNAL_SERVER_ERROR for plain errors
func GetErrorCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// GetErrorSeverity returns the severity, or SeverityError for plain errors
func GetErrorSeverity(err error) SeverityLevel {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Severity
	}
	return SeverityError
}

// IsRetryable reports whether an error is likely transient. Fatal severity is
// never retryable regardless of code.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		switch appErr.Code {
		case ErrorCodeTimeout, ErrorCodeServiceUnavailable, ErrorCodeDatabaseConnection,
			ErrorCodeInferenceUnavailable, ErrorCodeInferenceAtCapacity:
			return appErr.Severity != SeverityFatal
		}
	}
	return false
}

// ToJSON converts an AppError to a JSON-serializable structure for API responses
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"error":     e.Message,
		"retryable": IsRetryable(e),
	}

	if e.Details != "" {
		result["details"] = e.Details
	}

	// the cause may carry internals; only expose it for error/fatal severity
	if e.Cause != nil && (e.Severity == SeverityError || e.Severity == SeverityFatal) {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// ContextKey represents a context key type for passing values through context
type ContextKey string

// LearnerIDKey stores the learner ID in context for attribution
const LearnerIDKey ContextKey = "learnerID"

// GetLearnerIDFromContext extracts the learner ID from context, returning "" if not found
func GetLearnerIDFromContext(ctx context.Context) string {
	if learnerID, ok := ctx.Value(LearnerIDKey).(string); ok {
		return learnerID
	}
	return ""
}

// WithLearnerID returns a new context with the learner ID set
func WithLearnerID(ctx context.Context, learnerID string) context.Context {
	return context.WithValue(ctx, LearnerIDKey, learnerID)
}
