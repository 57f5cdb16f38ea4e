// Package errors defines the error kinds the pipeline distinguishes when
// deciding whether a failure aborts a mode, skips one item, or is retried.
package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ConfigError reports a missing or invalid setting. It is always fatal and is
// raised before any side effect.
type ConfigError struct {
	Keys    []string
	Message string
}

func (e *ConfigError) Error() string {
	if len(e.Keys) == 0 {
		return "config error: " + e.Message
	}
	if e.Message == "" {
		return fmt.Sprintf("config error: missing required setting(s): %s", strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("config error: %s (%s)", e.Message, strings.Join(e.Keys, ", "))
}

// NewConfigError creates a ConfigError for the given keys.
func NewConfigError(message string, keys ...string) *ConfigError {
	return &ConfigError{Keys: keys, Message: message}
}

// TransportError wraps a failed tracker or VCS call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with the operation that failed. A nil err yields nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// MalformedDataError reports a candidate or parsed item that is missing
// required fields.
type MalformedDataError struct {
	Subject string
	Reason  string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Subject, e.Reason)
}

// NewMalformedDataError creates a MalformedDataError.
func NewMalformedDataError(subject, reason string) *MalformedDataError {
	return &MalformedDataError{Subject: subject, Reason: reason}
}

// UpstreamGenerationError reports that a candidate engine failed or returned
// unusable output.
type UpstreamGenerationError struct {
	Engine string
	Err    error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *UpstreamGenerationError) Unwrap() error { return e.Err }

// NewUpstreamGenerationError wraps err for the named engine.
func NewUpstreamGenerationError(engine string, err error) *UpstreamGenerationError {
	return &UpstreamGenerationError{Engine: engine, Err: err}
}

// APIError represents a non-2xx response from a remote HTTP API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, message string, retryAfter time.Duration) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether err is worth another attempt: rate limiting,
// server errors and network timeouts. Client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			(apiErr.StatusCode >= 500 && apiErr.StatusCode < 600)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsMalformed reports whether err is (or wraps) a MalformedDataError.
func IsMalformed(err error) bool {
	var target *MalformedDataError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is (or wraps) an UpstreamGenerationError.
func IsUpstream(err error) bool {
	var target *UpstreamGenerationError
	return errors.As(err, &target)
}
