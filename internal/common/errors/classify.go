package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strings"
)

const (
	MsgConnectionFailed = "Unable to connect to the server. Check your internet connection and try again."
	MsgTimeout          = "The request timed out. Please try again."
	MsgCanceled         = "The request was cancelled."
	MsgInvalidResponse  = "The server returned an unexpected response."
	MsgUnknown          = "An unexpected error occurred. Please try again."
)

// statusMessages are the fixed human strings for recognized status codes.
var statusMessages = map[int]string{
	http.StatusBadRequest:            "Invalid request. Please check your input.",
	http.StatusUnauthorized:          "Your session has expired. Please sign in again.",
	http.StatusForbidden:             "You do not have permission to do that.",
	http.StatusNotFound:              "The requested resource was not found.",
	http.StatusRequestTimeout:        "The server took too long to respond. Please try again.",
	http.StatusConflict:              "This change conflicts with the current state. Refresh and try again.",
	http.StatusRequestEntityTooLarge: "The file is too large to upload. Please use a smaller image.",
	http.StatusUnprocessableEntity:   "The server could not process the request. Please check the data you sent.",
	http.StatusTooManyRequests:       "Too many requests. Please wait a moment and try again.",
	http.StatusInternalServerError:   "Something went wrong on the server. Please try again later.",
	http.StatusBadGateway:            "The server is temporarily unreachable. Please try again later.",
	http.StatusServiceUnavailable:    "The service is temporarily unavailable. Please try again shortly.",
}

// Failure is the raw outcome of a transport attempt. Err is set when no
// response was received; otherwise Status and Body describe the response.
type Failure struct {
	Err    error
	Status int
	Body   []byte
}

// Classify maps a raw failure to a StructuredError. It is pure: the same
// Failure always yields the same result.
func Classify(f Failure) *StructuredError {
	if f.Status == StatusNoResponse {
		switch {
		case f.Err == nil:
		case isCanceled(f.Err):
			return NewCanceledError(f.Err)
		case isTimeout(f.Err):
			return NewTimeoutError(MsgTimeout, StatusNoResponse, f.Err)
		}
		return NewNetworkError(f.Err)
	}

	status := f.Status
	if status < 100 || status > 599 {
		// Not an HTTP status; treat as no response.
		return NewNetworkError(f.Err)
	}

	se := &StructuredError{
		Status:  status,
		Message: MessageFor(status),
		Kind:    kindFor(status),
		Cause:   f.Err,
	}

	if payload := decodePayload(f.Body); payload != nil {
		se.Payload = payload
		if msg := serverMessage(payload); msg != "" {
			se.Message = msg
		}
	}
	return se
}

// MessageFor returns the fixed message for status, or a generic fallback.
func MessageFor(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	switch {
	case status >= 500:
		return statusMessages[http.StatusInternalServerError]
	case status >= 400:
		return "The request could not be completed."
	}
	return MsgUnknown
}

func kindFor(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusNotImplemented:
		return KindNotImplemented
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	}
	return KindBusinessRule
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

func decodePayload(body []byte) interface{} {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	var payload interface{}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return trimmed
	}
	return payload
}

// serverMessage picks the first non-empty string among detail, error and
// message. FastAPI validation errors carry detail as a list of objects.
func serverMessage(payload interface{}) string {
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, field := range []string{"detail", "error", "message"} {
		switch v := obj[field].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			if first, ok := v[0].(map[string]interface{}); ok {
				if msg, ok := first["msg"].(string); ok && strings.TrimSpace(msg) != "" {
					return strings.TrimSpace(msg)
				}
			}
		}
	}
	return ""
}
