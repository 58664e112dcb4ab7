package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured application error.
type AppError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError with retryability derived from the code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Retryable: IsRetryableCode(code)}
}

// ServiceUnavailable reports a dependency that is temporarily down.
func ServiceUnavailable(service string) *AppError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service)).
		WithDetail("service", service)
}

// ConnectionFailed reports a failed connection to a dependency.
func ConnectionFailed(service string) *AppError {
	return New(ErrCodeConnectionFailed, fmt.Sprintf("unable to connect to %s", service)).
		WithDetail("service", service)
}

func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out", operation)).WithDetail("operation", operation)
}

// NotFound reports a missing resource. An empty id is omitted from details.
func NotFound(resource, id string) *AppError {
	e := New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason)
}

func Unauthorized(reason string) *AppError {
	return New(ErrCodeUnauthorized, reason)
}

func Forbidden(reason string) *AppError {
	return New(ErrCodeForbidden, reason)
}

// InvalidInput reports a malformed value for field.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, fmt.Sprintf("invalid input: %s", reason))
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation wraps a validation message.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

func MissingField(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

// DownloadFailed reports that the source audio could not be fetched.
func DownloadFailed(ref string, cause error) *AppError {
	return New(ErrCodeDownloadFailed, "audio download failed").WithDetail("ref", ref).WithCause(cause)
}

// TranscriptionFailed reports that speech-to-text produced no result.
func TranscriptionFailed(cause error) *AppError {
	return New(ErrCodeTranscriptionFailed, "transcription failed").WithCause(cause)
}

// PersistFailed reports that a durable write did not complete.
func PersistFailed(target string, cause error) *AppError {
	return New(ErrCodePersistFailed, fmt.Sprintf("persisting %s failed", target)).
		WithDetail("target", target).WithCause(cause)
}

func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "unexpected internal error").WithCause(cause)
}

func DatabaseError(cause error) *AppError {
	return New(ErrCodeDatabaseError, "database operation failed").WithCause(cause)
}

// ExternalServiceError reports a failing remote capability.
func ExternalServiceError(service string, cause error) *AppError {
	return New(ErrCodeExternalService, fmt.Sprintf("%s returned an error", service)).
		WithDetail("service", service).WithCause(cause)
}

// IsAppError reports whether err wraps an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError extracts an AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is an AppError flagged retryable.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
