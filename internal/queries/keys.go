// internal/queries/keys.go
package queries

import (
	"fridgetrack-sync/internal/api/inventory"
	"fridgetrack-sync/internal/cache"
	"fridgetrack-sync/internal/models"
)

const (
	ResourceInventory    = "inventory"
	ResourceExpiring     = "expiring"
	ResourceRecipes      = "recipes"
	ResourceShoppingList = "shopping-list"
	ResourceStats        = "stats"
	ResourceHealth       = "health"
)

// InventoryRoot is the prefix of every inventory list of a user.
func InventoryRoot(userID string) cache.Key {
	return cache.NewKey(ResourceInventory, userID)
}

func InventoryKey(userID string, status models.ItemStatus) cache.Key {
	if status == "" {
		status = models.StatusActive
	}
	return cache.NewKey(ResourceInventory, userID, string(status))
}

// ExpiringRoot is the prefix of every expiring-items window of a user.
func ExpiringRoot(userID string) cache.Key {
	return cache.NewKey(ResourceExpiring, userID)
}

// ExpiringKey includes the effective window so different windows never
// share an entry.
func ExpiringKey(userID string, days int) cache.Key {
	return cache.NewKey(ResourceExpiring, userID, inventory.NormalizeDays(days))
}

func RecipesKey(userID string, days int) cache.Key {
	return cache.NewKey(ResourceRecipes, userID, inventory.NormalizeDays(days))
}

func ShoppingListKey(userID string) cache.Key {
	return cache.NewKey(ResourceShoppingList, userID)
}

func StatsKey(userID string) cache.Key {
	return cache.NewKey(ResourceStats, userID)
}

func HealthKey() cache.Key {
	return cache.NewKey(ResourceHealth)
}

// UserRoots lists the prefixes whose data changes when a user's items do.
func UserRoots(userID string) []cache.Key {
	return []cache.Key{InventoryRoot(userID), ExpiringRoot(userID), StatsKey(userID)}
}
