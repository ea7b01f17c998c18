// internal/mutations/orchestrator_test.go
package mutations

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgetrack-sync/internal/cache"
	apperrors "fridgetrack-sync/internal/common/errors"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
	"fridgetrack-sync/internal/models"
	"fridgetrack-sync/internal/queries"
)

type fakeItems struct {
	err       error
	onUpdate  func()
	updates   []models.ItemStatus
	deletes   int
	deleteErr error
}

func (f *fakeItems) UpdateStatus(ctx context.Context, itemID string, status models.ItemStatus) (*models.StatusUpdate, error) {
	f.updates = append(f.updates, status)
	if f.onUpdate != nil {
		f.onUpdate()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.StatusUpdate{ItemID: itemID, Status: status}, nil
}

func (f *fakeItems) Delete(ctx context.Context, itemID string) error {
	f.deletes++
	return f.deleteErr
}

func intPtr(i int) *int { return &i }

func seed(t *testing.T) (*cache.Store, []models.InventoryItem, *models.ExpiringItems) {
	t.Helper()
	store := cache.NewStore(cache.Config{StaleTime: time.Minute}, cache.WithLogger(logger.NewTestLogger(t)))
	t.Cleanup(store.Close)

	list := []models.InventoryItem{
		{ID: "A", Name: "apple", ConfidenceScore: 0.9, Status: models.StatusActive},
		{ID: "B", Name: "bread", ConfidenceScore: 0.8, ExpirationDate: "2026-10-16", Status: models.StatusActive, DaysLeft: intPtr(1)},
		{ID: "C", Name: "cheese", ConfidenceScore: 0.7, Status: models.StatusActive},
	}
	exp := &models.ExpiringItems{
		UserID:  "user-1",
		Days:    3,
		Items:   []models.InventoryItem{list[1]},
		Total:   1,
		Urgency: models.Urgency{Tomorrow: 1},
	}
	store.SetData(queries.InventoryKey("user-1", models.StatusActive), list)
	store.SetData(queries.ExpiringKey("user-1", 3), exp)
	store.SetData(queries.ExpiringKey("user-1", 7), exp)
	store.SetData(queries.StatsKey("user-1"), &models.Stats{})
	store.SetData(queries.InventoryKey("user-2", models.StatusActive), list)
	return store, list, exp
}

func ids(v interface{}) []string {
	var items []models.InventoryItem
	switch x := v.(type) {
	case []models.InventoryItem:
		items = x
	case *models.ExpiringItems:
		items = x.Items
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestRemoveItem_OptimisticThenCommit(t *testing.T) {
	store, _, _ := seed(t)
	invKey := queries.InventoryKey("user-1", models.StatusActive)

	items := &fakeItems{}
	items.onUpdate = func() {
		data, _ := store.GetData(invKey)
		assert.Equal(t, []string{"A", "C"}, ids(data), "item is gone before the server answers")
		for _, days := range []int{3, 7} {
			exp, _ := store.GetData(queries.ExpiringKey("user-1", days))
			assert.Empty(t, ids(exp))
			assert.Equal(t, 0, exp.(*models.ExpiringItems).Total)
			assert.Equal(t, models.Urgency{}, exp.(*models.ExpiringItems).Urgency)
		}
	}
	o := NewOrchestrator(store, items, logger.NewTestLogger(t))

	res, err := o.MarkConsumed(context.Background(), "user-1", "B")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConsumed, res.Status)

	data, _ := store.GetData(invKey)
	assert.Equal(t, []string{"A", "C"}, ids(data))

	for _, key := range []cache.Key{invKey, queries.ExpiringKey("user-1", 3), queries.StatsKey("user-1")} {
		st, _ := store.Get(key)
		assert.True(t, st.Stale, "%v is revalidated after settling", key)
	}

	other, _ := store.GetData(queries.InventoryKey("user-2", models.StatusActive))
	assert.Equal(t, []string{"A", "B", "C"}, ids(other), "other users are untouched")
	otherState, _ := store.Get(queries.InventoryKey("user-2", models.StatusActive))
	assert.False(t, otherState.Stale)
}

func inventory(ids ...string) []models.InventoryItem {
	out := make([]models.InventoryItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.InventoryItem{ID: id, Name: "item " + id, Status: models.StatusActive})
	}
	return out
}

func TestRemoveItem_RefreshStartedDuringRequestIsRedone(t *testing.T) {
	store := cache.NewStore(cache.Config{StaleTime: time.Minute}, cache.WithLogger(logger.NewTestLogger(t)))
	t.Cleanup(store.Close)
	ctx := context.Background()
	key := queries.InventoryKey("user-1", models.StatusActive)

	var (
		mu      sync.Mutex
		server  = []string{"A", "B", "C"}
		gated   int32
		fetches int32
		started = make(chan struct{})
		release = make(chan struct{})
	)
	fetch := func(ctx context.Context) ([]models.InventoryItem, error) {
		atomic.AddInt32(&fetches, 1)
		mu.Lock()
		list := inventory(server...)
		mu.Unlock()
		if atomic.CompareAndSwapInt32(&gated, 1, 0) {
			close(started)
			<-release
		}
		return list, nil
	}
	read := func() {
		_, err := cache.Query(ctx, store, key, fetch, cache.Options{StaleTime: time.Nanosecond})
		require.NoError(t, err)
	}

	unsubscribe := store.Subscribe(key, func(cache.State) {})
	defer unsubscribe()
	read()

	items := &fakeItems{}
	items.onUpdate = func() {
		// A reader refreshes the stale list before the server commits.
		atomic.StoreInt32(&gated, 1)
		read()
		<-started
		mu.Lock()
		server = []string{"A", "C"}
		mu.Unlock()
	}
	o := NewOrchestrator(store, items, logger.NewTestLogger(t))

	_, err := o.MarkConsumed(ctx, "user-1", "B")
	require.NoError(t, err)
	close(release)
	store.Wait()

	data, _ := store.GetData(key)
	assert.Equal(t, []string{"A", "C"}, ids(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetches))
}

func TestRemoveItem_RollbackOnFailure(t *testing.T) {
	store, list, exp := seed(t)
	invKey := queries.InventoryKey("user-1", models.StatusActive)
	original := append([]models.InventoryItem(nil), list...)

	items := &fakeItems{err: apperrors.Classify(apperrors.Failure{Status: http.StatusInternalServerError})}
	o := NewOrchestrator(store, items, logger.NewTestLogger(t))
	rollbacks := testutil.ToFloat64(metrics.OptimisticRollbacks.WithLabelValues(string(models.StatusWasted)))

	_, err := o.MarkWasted(context.Background(), "user-1", "B")
	assert.Equal(t, rollbacks+1, testutil.ToFloat64(metrics.OptimisticRollbacks.WithLabelValues(string(models.StatusWasted))))
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, se.Status, "error is surfaced unchanged")

	data, _ := store.GetData(invKey)
	assert.Equal(t, original, data, "B is back with identical fields")
	assert.Equal(t, list, data)

	got, _ := store.GetData(queries.ExpiringKey("user-1", 7))
	assert.Same(t, exp, got)

	st, _ := store.Get(invKey)
	assert.True(t, st.Stale, "invalidated regardless of outcome")
}

func TestRemoveItem_NotFoundStillRollsBack(t *testing.T) {
	store, list, _ := seed(t)
	notFound := apperrors.Remap(apperrors.Classify(apperrors.Failure{Status: 404}), 404, "Item not found. It may have already been removed.")
	o := NewOrchestrator(store, &fakeItems{err: notFound}, nil)

	_, err := o.RemoveItem(context.Background(), "user-1", "B", models.StatusConsumed)
	assert.True(t, apperrors.IsNotFound(err))

	data, _ := store.GetData(queries.InventoryKey("user-1", models.StatusActive))
	assert.Equal(t, list, data)
}

func TestRemoveItem_RejectsActiveStatus(t *testing.T) {
	store, _, _ := seed(t)
	items := &fakeItems{}
	o := NewOrchestrator(store, items, nil)

	_, err := o.RemoveItem(context.Background(), "user-1", "B", models.StatusActive)
	assert.Error(t, err)
	assert.Empty(t, items.updates)
}

func TestRemoveItem_UnknownItemLeavesListsAlone(t *testing.T) {
	store, list, _ := seed(t)
	o := NewOrchestrator(store, &fakeItems{}, nil)

	_, err := o.MarkConsumed(context.Background(), "user-1", "Z")
	require.NoError(t, err)

	data, _ := store.GetData(queries.InventoryKey("user-1", models.StatusActive))
	assert.Equal(t, list, data)
}

func TestRestore(t *testing.T) {
	store, _, _ := seed(t)
	items := &fakeItems{}
	o := NewOrchestrator(store, items, nil)

	res, err := o.Restore(context.Background(), "user-1", "B")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, res.Status)
	assert.Equal(t, []models.ItemStatus{models.StatusActive}, items.updates)

	st, _ := store.Get(queries.InventoryKey("user-1", models.StatusActive))
	assert.True(t, st.Stale)
}

func TestDeleteItem_NotImplementedTouchesNothing(t *testing.T) {
	store, list, _ := seed(t)
	items := &fakeItems{deleteErr: apperrors.NewNotImplementedError("Deleting items")}
	o := NewOrchestrator(store, items, nil)

	err := o.DeleteItem(context.Background(), "user-1", "B")
	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotImplemented, se.Status)
	assert.Equal(t, 1, items.deletes)

	data, _ := store.GetData(queries.InventoryKey("user-1", models.StatusActive))
	assert.Equal(t, list, data)
	st, _ := store.Get(queries.InventoryKey("user-1", models.StatusActive))
	assert.False(t, st.Stale)
}
