// internal/api/stats/client_test.go
package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/models"
)

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stats/user-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_items_tracked":10,"items_saved":6,"items_wasted":2,"money_saved":18.0,"pounds_saved":3.0,"co2_saved":2.4}`))
	}))
	defer server.Close()

	hc, err := apphttp.NewClient(server.URL)
	require.NoError(t, err)

	got, err := NewClient(hc).Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{
		TotalItemsTracked: 10,
		ItemsSaved:        6,
		ItemsWasted:       2,
		MoneySaved:        18,
		PoundsSaved:       3,
		CO2Saved:          2.4,
	}, got)
}

func TestGet_ErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	hc, err := apphttp.NewClient(server.URL)
	require.NoError(t, err)

	_, err = NewClient(hc).Get(context.Background(), "user-1")
	assert.True(t, apperrors.IsNotFound(err))
}
