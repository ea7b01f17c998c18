// Package errors normalizes every failure of the sync layer into a single
// StructuredError carrying an HTTP-like status code and a human message.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the coarse category a StructuredError falls into.
type Kind string

const (
	KindNetwork        Kind = "NETWORK_UNREACHABLE"
	KindTimeout        Kind = "TIMEOUT"
	KindClient         Kind = "CLIENT_REQUEST_ERROR"
	KindServer         Kind = "SERVER_ERROR"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindBusinessRule   Kind = "BUSINESS_RULE_FAILURE"
	KindNotImplemented Kind = "NOT_IMPLEMENTED"
	KindCanceled       Kind = "CANCELED"
)

// StatusNoResponse is used when no HTTP response was received at all.
const StatusNoResponse = 0

// StructuredError is the only error type callers of the sync layer observe.
type StructuredError struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Payload interface{} `json:"payload,omitempty"`
	Kind    Kind        `json:"kind"`
	Cause   error       `json:"-"`
}

func (e *StructuredError) Error() string {
	if e.Status == StatusNoResponse {
		return fmt.Sprintf("StructuredError[%s]: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("StructuredError[%s %d]: %s", e.Kind, e.Status, e.Message)
}

func (e *StructuredError) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code; 0 means no response was received.
func (e *StructuredError) HTTPStatus() int { return e.Status }

// Retryable reports whether the failure is eligible for backoff retry.
func (e *StructuredError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// Is matches another StructuredError by status and kind so that
// errors.Is(err, &StructuredError{Status: 404}) style checks work.
func (e *StructuredError) Is(target error) bool {
	t, ok := target.(*StructuredError)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Status == e.Status
}

// ==========================
// Constructors
// ==========================

// NewNetworkError is returned when the server could not be reached.
func NewNetworkError(cause error) *StructuredError {
	return &StructuredError{
		Status:  StatusNoResponse,
		Message: MsgConnectionFailed,
		Kind:    KindNetwork,
		Cause:   cause,
	}
}

// NewTimeoutError reports an aborted request. status is 0 for ordinary
// requests and 408 for uploads that exceeded their processing window.
func NewTimeoutError(message string, status int, cause error) *StructuredError {
	if message == "" {
		message = MsgTimeout
	}
	return &StructuredError{
		Status:  status,
		Message: message,
		Kind:    KindTimeout,
		Cause:   cause,
	}
}

// NewCanceledError reports a request abandoned by its caller. No response
// was received, so the status stays 0.
func NewCanceledError(cause error) *StructuredError {
	return &StructuredError{
		Status:  StatusNoResponse,
		Message: MsgCanceled,
		Kind:    KindCanceled,
		Cause:   cause,
	}
}

// NewNotImplementedError fails fast for operations the backend does not offer.
func NewNotImplementedError(operation string) *StructuredError {
	return &StructuredError{
		Status:  http.StatusNotImplemented,
		Message: fmt.Sprintf("%s is not supported by the server yet.", operation),
		Kind:    KindNotImplemented,
	}
}

// NewBusinessRuleError marks an HTTP success whose payload is still a failure.
func NewBusinessRuleError(message string, payload interface{}) *StructuredError {
	return &StructuredError{
		Status:  http.StatusOK,
		Message: message,
		Payload: payload,
		Kind:    KindBusinessRule,
	}
}

// NewValidationError is a local rejection raised before any network I/O.
func NewValidationError(message string) *StructuredError {
	return &StructuredError{
		Status:  StatusNoResponse,
		Message: message,
		Kind:    KindClient,
	}
}

// NewDecodeError reports a 2xx response whose body could not be decoded.
func NewDecodeError(status int, cause error) *StructuredError {
	return &StructuredError{
		Status:  status,
		Message: MsgInvalidResponse,
		Kind:    KindServer,
		Cause:   cause,
	}
}

// ==========================
// Helpers
// ==========================

// As extracts a StructuredError from err.
func As(err error) (*StructuredError, bool) {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Ensure always returns a StructuredError, classifying foreign errors as
// transport failures.
func Ensure(err error) *StructuredError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	return Classify(Failure{Err: err})
}

// StatusOf returns the status code of err, or -1 when err is nil.
func StatusOf(err error) int {
	if err == nil {
		return -1
	}
	return Ensure(err).Status
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func IsRateLimited(err error) bool {
	se, ok := As(err)
	return ok && se.Retryable()
}

func IsTimeout(err error) bool {
	se, ok := As(err)
	return ok && se.Kind == KindTimeout
}

// Remap returns a copy of err with a resource-specific message when its status
// equals status. Status, payload and kind are preserved.
func Remap(err error, status int, message string) error {
	se, ok := As(err)
	if !ok || se.Status != status {
		return err
	}
	cp := *se
	cp.Message = message
	return &cp
}

func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}
