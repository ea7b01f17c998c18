// internal/api/scan/client_test.go
package scan

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...apphttp.Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc, err := apphttp.NewClient(server.URL, opts...)
	require.NoError(t, err)
	return NewClient(hc, logger.NewTestLogger(t))
}

var jpeg = File{Name: "fridge.jpg", ContentType: "image/jpeg", Content: []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}}

func TestUpload_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scan", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "user-1", r.FormValue("user_id"))
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, jpeg.Content, data)

		_, _ = w.Write([]byte(`{
			"scan_id": "s1",
			"items_detected": [
				{"item_name": "milk", "confidence": 0.9, "bounding_box": [1,2,3,4], "expiration_date": "2026-10-20"},
				{"item_name": "egg", "confidence": 0.8, "bounding_box": [5,6,7,8], "expiration_date": null}
			],
			"total_items": 2,
			"processing_time": 1.25,
			"message": "Successfully detected 2 items"
		}`))
	})

	var last int
	res, err := client.Upload(context.Background(), "user-1", jpeg, func(p int) { last = p })
	require.NoError(t, err)
	assert.Equal(t, 100, last)
	assert.Equal(t, "s1", res.ScanID)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "milk", res.Items[0].Name)
	assert.Equal(t, "2026-10-20", res.Items[0].ExpirationDate)
	assert.Empty(t, res.Items[1].ExpirationDate)
	assert.Equal(t, []float64{5, 6, 7, 8}, res.Items[1].BoundingBox)
}

func TestUpload_EmptyDetectionsIsNotATransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scan_id":"s2","items_detected":[],"total_items":0,"processing_time":0.4,"message":"none"}`))
	})

	res, err := client.Upload(context.Background(), "user-1", jpeg, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestUpload_Remaps(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
	}{
		{"too large", http.StatusRequestEntityTooLarge, MsgTooLarge},
		{"unprocessable", http.StatusUnprocessableEntity, MsgUnprocessable},
		{"server error", http.StatusInternalServerError, "Detection failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"Detection failed"}`))
			})
			_, err := client.Upload(context.Background(), "user-1", jpeg, nil)
			se, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.message, se.Message)
		})
	}
}

func TestUpload_TimeoutBecomes408(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, apphttp.WithUploadTimeout(50*time.Millisecond))
	defer close(release)

	_, err := client.Upload(context.Background(), "user-1", jpeg, nil)
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusRequestTimeout, se.Status)
	assert.Equal(t, apperrors.KindTimeout, se.Kind)
	assert.Equal(t, MsgProcessingTimeout, se.Message)
}

func TestUpload_CancellationIsNotATimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := client.Upload(ctx, "user-1", jpeg, nil)
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.StatusNoResponse, se.Status)
	assert.Equal(t, apperrors.KindCanceled, se.Kind)
	assert.Equal(t, apperrors.MsgCanceled, se.Message)
}

func TestUpload_LocalValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Upload(context.Background(), "", jpeg, nil)
	assert.Error(t, err)
	_, err = client.Upload(context.Background(), "user-1", File{Name: "x.jpg"}, nil)
	assert.Error(t, err)
}
