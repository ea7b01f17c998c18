package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	errors []map[string]interface{}
	warns  []map[string]interface{}
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.errors = append(l.errors, fields)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warns = append(l.warns, fields)
}

func TestClassify_NoResponse(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    Kind
		wantMessage string
	}{
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), KindNetwork, MsgConnectionFailed},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout, MsgTimeout},
		{"wrapped deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), KindTimeout, MsgTimeout},
		{"wrapped cancel", fmt.Errorf("do: %w", context.Canceled), KindCanceled, MsgCanceled},
		{"nil cause", nil, KindNetwork, MsgConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := Classify(Failure{Err: tt.err})
			assert.Equal(t, 0, se.Status)
			assert.Equal(t, tt.wantKind, se.Kind)
			assert.Equal(t, tt.wantMessage, se.Message)
		})
	}
}

func TestClassify_KnownStatusCodes(t *testing.T) {
	for status, msg := range statusMessages {
		se := Classify(Failure{Status: status})
		assert.Equal(t, status, se.Status)
		assert.Equal(t, msg, se.Message)
		assert.NotEmpty(t, se.Message)
	}
}

func TestClassify_UnknownStatusFallsBack(t *testing.T) {
	se := Classify(Failure{Status: 418})
	assert.Equal(t, 418, se.Status)
	assert.Equal(t, "The request could not be completed.", se.Message)
	assert.Equal(t, KindClient, se.Kind)

	se = Classify(Failure{Status: 599})
	assert.Equal(t, KindServer, se.Kind)
	assert.NotEmpty(t, se.Message)
}

func TestClassify_ServerMessageOverrides(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fastapi detail", `{"detail":"Item not found"}`, "Item not found"},
		{"error field", `{"error":"bad thing"}`, "bad thing"},
		{"message field", `{"message":"try later"}`, "try later"},
		{"detail wins over message", `{"message":"m","detail":"d"}`, "d"},
		{"validation list", `{"detail":[{"loc":["body","status"],"msg":"field required"}]}`, "field required"},
		{"blank detail ignored", `{"detail":"  "}`, statusMessages[http.StatusBadRequest]},
		{"plain text body", `oops`, statusMessages[http.StatusBadRequest]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := Classify(Failure{Status: http.StatusBadRequest, Body: []byte(tt.body)})
			assert.Equal(t, tt.want, se.Message)
			assert.NotNil(t, se.Payload)
		})
	}
}

func TestClassify_StatusNeverNegative(t *testing.T) {
	for _, status := range []int{-5, 0, 42, 200, 404, 503, 1000} {
		se := Classify(Failure{Status: status})
		assert.GreaterOrEqual(t, se.Status, 0)
		if se.Status != 0 {
			assert.True(t, se.Status >= 100 && se.Status <= 599)
		}
		assert.NotEmpty(t, se.Message)
	}
}

func TestClassify_RateLimitedKinds(t *testing.T) {
	assert.True(t, Classify(Failure{Status: 429}).Retryable())
	assert.True(t, Classify(Failure{Status: 503}).Retryable())
	assert.False(t, Classify(Failure{Status: 500}).Retryable())
	assert.False(t, Classify(Failure{Status: 422}).Retryable())
	assert.Equal(t, KindRateLimited, Classify(Failure{Status: 429}).Kind)
}

func TestRemap_PreservesStatus(t *testing.T) {
	orig := Classify(Failure{Status: 404, Body: []byte(`{"detail":"Item not found"}`)})
	remapped := Remap(orig, 404, "Item not found. It may have already been removed.")

	se, ok := As(remapped)
	require.True(t, ok)
	assert.Equal(t, 404, se.Status)
	assert.Equal(t, "Item not found. It may have already been removed.", se.Message)
	assert.Equal(t, orig.Payload, se.Payload)
	assert.Equal(t, "Item not found", orig.Message, "original must not be mutated")

	untouched := Remap(orig, 422, "other")
	assert.Same(t, orig, untouched)
}

func TestEnsureAndStatusOf(t *testing.T) {
	assert.Nil(t, Ensure(nil))
	assert.Equal(t, -1, StatusOf(nil))
	assert.Equal(t, 0, StatusOf(fmt.Errorf("boom")))
	wrapped := fmt.Errorf("wrap: %w", NewNotImplementedError("Deleting items"))
	assert.Equal(t, http.StatusNotImplemented, StatusOf(wrapped))
	assert.True(t, IsNotFound(Classify(Failure{Status: 404})))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(Classify(Failure{Status: 429})))
	assert.True(t, IsRateLimited(fmt.Errorf("wrap: %w", Classify(Failure{Status: 503}))))
	assert.False(t, IsRateLimited(Classify(Failure{Status: 500})))
	assert.False(t, IsRateLimited(fmt.Errorf("plain")))
}

func TestReporter_LevelsByKind(t *testing.T) {
	log := &recordingLogger{}
	r := NewReporter(log)

	se := r.Report("scan", Classify(Failure{Status: 500, Body: []byte(`{"detail":"Scan failed: x"}`)}))
	assert.Equal(t, 500, se.Status)
	require.Len(t, log.errors, 1)
	assert.Equal(t, "scan", log.errors[0]["operation"])
	assert.NotNil(t, log.errors[0]["payload"])

	r.Report("update", NewValidationError("bad status"))
	assert.Len(t, log.warns, 1)
}
