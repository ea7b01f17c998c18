// internal/common/errors/handler.go
package errors

// Logger is the subset of the logging interface the reporter needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Reporter logs failures with their full diagnostic payload. The payload is
// never shown to end users, only recorded here.
type Reporter struct {
	logger Logger
}

func NewReporter(logger Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report normalizes err and logs it under operation. It returns the
// normalized error so callers can propagate it unchanged.
func (r *Reporter) Report(operation string, err error) *StructuredError {
	se := Ensure(err)
	if se == nil || r == nil || r.logger == nil {
		return se
	}

	fields := map[string]interface{}{
		"operation": operation,
		"status":    se.Status,
		"kind":      string(se.Kind),
		"message":   se.Message,
		"retryable": se.Retryable(),
	}
	if se.Payload != nil {
		fields["payload"] = se.Payload
	}
	if se.Cause != nil {
		fields["cause"] = se.Cause.Error()
	}

	switch se.Kind {
	case KindClient, KindBusinessRule, KindNotImplemented:
		r.logger.Warn("operation failed", fields)
	default:
		r.logger.Error("operation failed", fields)
	}
	return se
}
