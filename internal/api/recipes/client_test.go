// internal/api/recipes/client_test.go
package recipes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/retry"
)

func noSleepPolicy() retry.Policy {
	p := retry.DefaultPolicy("")
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc, err := apphttp.NewClient(server.URL)
	require.NoError(t, err)
	return NewClient(hc, noSleepPolicy(), logger.NewTestLogger(t))
}

const recipesBody = `{
	"recipes": [{"name": "Omelette", "ingredients": ["eggs","milk"], "instructions": ["whisk","cook"], "prep_time": "10 min", "items_used": ["eggs"]}],
	"expiring_items_used": ["eggs"],
	"message": "Generated 1 recipes"
}`

func TestRecipes_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recipes/user-1", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(recipesBody))
	})

	res, err := client.Recipes(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "Omelette", res.Recipes[0].Name)
	assert.Equal(t, "10 min", res.Recipes[0].PrepTime)
	assert.Equal(t, []string{"eggs"}, res.ExpiringItemsUsed)
}

func TestRecipes_RetriesRateLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(recipesBody))
	})

	res, err := client.Recipes(context.Background(), "user-1", 3)
	require.NoError(t, err)
	assert.Len(t, res.Recipes, 1)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestRecipes_GivesUpWithLast429(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"Gemini quota exceeded"}`))
	})

	_, err := client.Recipes(context.Background(), "user-1", 3)
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 429, se.Status)
	assert.Equal(t, "Gemini quota exceeded", se.Message)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestRecipes_ServerErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Recipes(context.Background(), "user-1", 3)
	assert.Equal(t, 500, apperrors.StatusOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecipes_NotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := client.Recipes(context.Background(), "user-1", 3)
	require.NoError(t, err)
	assert.NotNil(t, res.Recipes)
	assert.Empty(t, res.Recipes)
}

func TestShoppingList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shopping-list/user-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"user_id": "user-1",
			"shopping_items": [{"item_name": "milk", "reason": "running low", "priority": 5, "frequency": 4}],
			"total_items": 1,
			"generated_at": "2026-10-15T08:00:00"
		}`))
	})

	res, err := client.ShoppingList(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "milk", res.Items[0].Name)
	assert.Equal(t, 5, res.Items[0].Priority)
	assert.Equal(t, 1, res.Total)
}

func TestShoppingList_RetriesUnavailable(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"user_id":"user-1","shopping_items":[],"total_items":0}`))
	})

	res, err := client.ShoppingList(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
