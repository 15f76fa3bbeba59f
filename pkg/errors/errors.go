package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies pipeline failures by the stage that produced them
type ErrorType string

const (
	ErrorTypeNavigation    ErrorType = "navigation"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeDownload      ErrorType = "download"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypePublish       ErrorType = "publish"
	ErrorTypeDelivery      ErrorType = "delivery"
	ErrorTypeAnalysis      ErrorType = "analysis"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error represents a pipeline error with stage and status information.
// Code carries the HTTP status where one exists, 0 otherwise. RetryAfter
// carries a server-provided backoff hint, 0 when the server gave none.
type Error struct {
	Type       ErrorType
	Message    string
	Code       int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without a status code
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithCode creates a typed error carrying an HTTP status code
func NewWithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// WithRetryAfter attaches a server-provided backoff hint
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// IsRetryableStatusCode reports whether an HTTP status is transient.
// Only 429, 502, 503 and 504 are treated as retryable; everything else
// surfaces immediately.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429, 502, 503, 504:
		return true
	default:
		return false
	}
}
