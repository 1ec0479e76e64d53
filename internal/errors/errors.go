package errors

import (
	"fmt"
)

// AtlasError is the structured error type for codeatlas. It carries a
// stable code plus context for logging and user presentation.
type AtlasError struct {
	// Code is the unique error code (e.g. "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category groups errors by origin (config, IO, network...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details holds additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation may succeed on retry.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

func (e *AtlasError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AtlasError) Unwrap() error {
	return e.Cause
}

// Is matches AtlasErrors by code, enabling errors.Is comparisons.
func (e *AtlasError) Is(target error) bool {
	if t, ok := target.(*AtlasError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail. Returns the error for chaining.
func (e *AtlasError) WithDetail(key, value string) *AtlasError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion for the user.
func (e *AtlasError) WithSuggestion(suggestion string) *AtlasError {
	e.Suggestion = suggestion
	return e
}

// New creates an AtlasError. Category, severity, and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *AtlasError {
	return &AtlasError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AtlasError from an existing error, reusing its
// message. Returns nil for a nil error.
func Wrap(code string, err error) *AtlasError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AtlasError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *AtlasError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError creates a network-related error. Network errors are
// retryable.
func NetworkError(message string, cause error) *AtlasError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates an input-validation error.
func ValidationError(message string, cause error) *AtlasError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AtlasError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err is an AtlasError marked retryable.
func IsRetryable(err error) bool {
	if ae, ok := err.(*AtlasError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	if ae, ok := err.(*AtlasError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the code from an AtlasError, or "" otherwise.
func GetCode(err error) string {
	if ae, ok := err.(*AtlasError); ok {
		return ae.Code
	}
	return ""
}
