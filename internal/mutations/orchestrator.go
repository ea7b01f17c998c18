// internal/mutations/orchestrator.go
package mutations

import (
	"context"

	"fridgetrack-sync/internal/cache"
	apperrors "fridgetrack-sync/internal/common/errors"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
	"fridgetrack-sync/internal/models"
	"fridgetrack-sync/internal/queries"
)

// ItemsAPI is the server side of item mutations.
type ItemsAPI interface {
	UpdateStatus(ctx context.Context, itemID string, status models.ItemStatus) (*models.StatusUpdate, error)
	Delete(ctx context.Context, itemID string) error
}

// Orchestrator applies item mutations to the cache before the server
// confirms them and reconciles afterwards.
type Orchestrator struct {
	store  *cache.Store
	items  ItemsAPI
	logger logger.Logger
}

func NewOrchestrator(store *cache.Store, items ItemsAPI, log logger.Logger) *Orchestrator {
	return &Orchestrator{store: store, items: items, logger: logger.OrNop(log)}
}

// RemoveItem takes an item out of the user's lists by moving it to status
// (consumed or wasted).
//
// Every inventory and expiring entry of the user drops the item before the
// server is called. On failure the snapshot taken beforehand is restored.
// Either way the affected entries are invalidated once the call settles.
func (o *Orchestrator) RemoveItem(ctx context.Context, userID, itemID string, status models.ItemStatus) (*models.StatusUpdate, error) {
	if status == models.StatusActive {
		return nil, apperrors.NewValidationError("Removing an item needs a consumed or wasted status.")
	}
	prefixes := []cache.Key{queries.InventoryRoot(userID), queries.ExpiringRoot(userID)}
	log := o.logger.With(map[string]interface{}{
		"userId": userID,
		"itemId": itemID,
		"status": string(status),
	})

	o.store.CancelQueries(prefixes...)
	snapshot := o.store.Snapshot(prefixes...)
	touched := 0
	for _, key := range snapshot.Keys() {
		if o.store.Update(key, func(old interface{}, ok bool) (interface{}, bool) {
			return withoutItem(old, itemID)
		}) {
			touched++
		}
	}
	log.Debug("optimistic removal applied", map[string]interface{}{"entries": touched})

	result, err := o.items.UpdateStatus(ctx, itemID, status)
	if err != nil {
		o.store.Restore(snapshot)
		metrics.OptimisticRollbacks.WithLabelValues(string(status)).Inc()
		log.Warn("removal failed, cache rolled back", map[string]interface{}{
			"error":   err.Error(),
			"entries": snapshot.Len(),
		})
	}

	o.store.Invalidate(queries.UserRoots(userID)...)
	return result, err
}

func (o *Orchestrator) MarkConsumed(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	return o.RemoveItem(ctx, userID, itemID, models.StatusConsumed)
}

func (o *Orchestrator) MarkWasted(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	return o.RemoveItem(ctx, userID, itemID, models.StatusWasted)
}

// Restore puts a consumed or wasted item back into the active list. There is
// nothing to show optimistically, so it only refreshes afterwards.
func (o *Orchestrator) Restore(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	result, err := o.items.UpdateStatus(ctx, itemID, models.StatusActive)
	o.store.Invalidate(queries.UserRoots(userID)...)
	return result, err
}

// DeleteItem surfaces the backend's lack of a delete endpoint unchanged and
// leaves the cache alone.
func (o *Orchestrator) DeleteItem(ctx context.Context, userID, itemID string) error {
	return o.items.Delete(ctx, itemID)
}

// withoutItem removes itemID from a cached inventory list or expiring
// result, returning a new value. Values without the item are left as is.
func withoutItem(value interface{}, itemID string) (interface{}, bool) {
	switch v := value.(type) {
	case []models.InventoryItem:
		if !containsItem(v, itemID) {
			return nil, false
		}
		return models.WithoutItem(v, itemID), true

	case *models.ExpiringItems:
		if v == nil || !containsItem(v.Items, itemID) {
			return nil, false
		}
		next := *v
		next.Items = models.WithoutItem(v.Items, itemID)
		removed := len(v.Items) - len(next.Items)
		next.Total = max(0, v.Total-removed)
		for _, it := range v.Items {
			if it.ID == itemID {
				next.Urgency = decrementUrgency(next.Urgency, it.DaysLeft)
			}
		}
		return &next, true
	}
	return nil, false
}

func containsItem(items []models.InventoryItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func decrementUrgency(u models.Urgency, daysLeft *int) models.Urgency {
	if daysLeft == nil {
		return u
	}
	switch {
	case *daysLeft == 0:
		u.Today = max(0, u.Today-1)
	case *daysLeft == 1:
		u.Tomorrow = max(0, u.Tomorrow-1)
	default:
		u.ThisWeek = max(0, u.ThisWeek-1)
	}
	return u
}
