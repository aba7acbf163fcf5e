package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrQueueNotFound        = errors.New("queue not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEndpointUnreachable  = errors.New("endpoint not reachable")
	ErrTimeoutExceeded      = errors.New("operation timeout exceeded")
	ErrAccessDenied         = errors.New("access denied")
	ErrMalformedContent     = errors.New("malformed content")
	ErrRefreshInFlight      = errors.New("refresh already in flight")
	ErrSupervisorStopped    = errors.New("supervisor stopped")
	ErrConfirmationRequired = errors.New("destructive operation requires confirmation")

	// ErrBinaryCodecRefused marks the deliberate refusal to serialize or
	// deserialize binary payloads into live objects. Deserializing untrusted
	// binary blobs is an injection vector, so this failure is permanent and
	// distinct from malformed content.
	ErrBinaryCodecRefused = errors.New("binary payloads are never deserialized into objects: refused by security policy")
)

type (
	DomainError struct {
		Code       string
		Message    string
		StatusCode int
		Cause      error
		Details    map[string]any
	}
)

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func NewDomainError(code, message string, statusCode int, cause error) *DomainError {
	return &DomainError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
		Details:    make(map[string]any),
	}
}

func (e *DomainError) WithDetails(key string, value any) *DomainError {
	e.Details[key] = value
	return e
}

// NewTransientError covers timeouts and network interruptions. These are
// retried automatically by the reconnect policy and never surfaced as fatal.
func NewTransientError(endpoint string, cause error) *DomainError {
	return NewDomainError(
		"TRANSIENT_CONNECTIVITY",
		fmt.Sprintf("endpoint %s is temporarily unreachable", endpoint),
		503,
		cause,
	).WithDetails("endpoint", endpoint).WithDetails("retryable", true)
}

// NewAccessError covers queues or endpoints inaccessible under the current
// credentials. Recorded per-queue or per-connection and not retried.
func NewAccessError(resource string, cause error) *DomainError {
	return NewDomainError(
		"ACCESS_DENIED",
		fmt.Sprintf("access to %s denied", resource),
		403,
		errors.Join(ErrAccessDenied, cause),
	).WithDetails("resource", resource).WithDetails("retryable", false)
}

// NewMalformedContentError covers payloads that fail validation for their
// claimed format. Always recoverable: rendering falls back to raw/binary.
func NewMalformedContentError(format ContentFormat, cause error) *DomainError {
	return NewDomainError(
		"MALFORMED_CONTENT",
		fmt.Sprintf("payload is not valid %s", format),
		422,
		errors.Join(ErrMalformedContent, cause),
	).WithDetails("format", string(format))
}

// NewBinaryCodecRefusedError is the permanent, by-design failure for binary
// serialize/deserialize requests.
func NewBinaryCodecRefusedError() *DomainError {
	return NewDomainError(
		"BINARY_CODEC_REFUSED",
		ErrBinaryCodecRefused.Error(),
		422,
		ErrBinaryCodecRefused,
	)
}

func NewTimeoutError(endpoint string, timeout any) *DomainError {
	return NewDomainError(
		"TIMEOUT_EXCEEDED",
		fmt.Sprintf("operation against %s exceeded its timeout", endpoint),
		408,
		ErrTimeoutExceeded,
	).WithDetails("endpoint", endpoint).WithDetails("timeout", timeout)
}

func NewConnectionNotFoundError(connectionID string) *DomainError {
	return NewDomainError(
		"CONNECTION_NOT_FOUND",
		fmt.Sprintf("no connection with id %s", connectionID),
		404,
		ErrConnectionNotFound,
	).WithDetails("connection_id", connectionID)
}

func NewQueueNotFoundError(queuePath string) *DomainError {
	return NewDomainError(
		"QUEUE_NOT_FOUND",
		fmt.Sprintf("no queue at path %s", queuePath),
		404,
		ErrQueueNotFound,
	).WithDetails("queue_path", queuePath)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(
		"INTERNAL_ERROR",
		message,
		500,
		cause,
	)
}

// IsRetryable reports whether an error belongs to the transient connectivity
// class that the reconnect policy may retry.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}

	retryable, ok := domainErr.Details["retryable"].(bool)

	return ok && retryable
}
