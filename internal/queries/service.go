// internal/queries/service.go
package queries

import (
	"context"
	"time"

	"fridgetrack-sync/internal/cache"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/models"
)

const (
	// AI responses are slow and rate limited; keep them longer.
	recipesStaleTime = 5 * time.Minute
	healthStaleTime  = 10 * time.Second
)

type InventoryAPI interface {
	List(ctx context.Context, userID string, status models.ItemStatus) ([]models.InventoryItem, error)
	Expiring(ctx context.Context, userID string, days int) (*models.ExpiringItems, error)
}

type RecipesAPI interface {
	Recipes(ctx context.Context, userID string, days int) (*models.RecipeSuggestions, error)
	ShoppingList(ctx context.Context, userID string) (*models.ShoppingList, error)
}

type StatsAPI interface {
	Get(ctx context.Context, userID string) (*models.Stats, error)
}

type HealthAPI interface {
	Check(ctx context.Context) (*models.Health, error)
}

// Service reads resources through the query cache.
type Service struct {
	store     *cache.Store
	inventory InventoryAPI
	recipes   RecipesAPI
	stats     StatsAPI
	health    HealthAPI
	logger    logger.Logger
}

func NewService(store *cache.Store, inv InventoryAPI, rec RecipesAPI, st StatsAPI, h HealthAPI, log logger.Logger) *Service {
	return &Service{
		store:     store,
		inventory: inv,
		recipes:   rec,
		stats:     st,
		health:    h,
		logger:    logger.OrNop(log),
	}
}

func (s *Service) Store() *cache.Store { return s.store }

func (s *Service) Inventory(ctx context.Context, userID string, status models.ItemStatus) ([]models.InventoryItem, error) {
	if status == "" {
		status = models.StatusActive
	}
	return cache.Query(ctx, s.store, InventoryKey(userID, status), func(ctx context.Context) ([]models.InventoryItem, error) {
		return s.inventory.List(ctx, userID, status)
	}, cache.Options{})
}

func (s *Service) Expiring(ctx context.Context, userID string, days int) (*models.ExpiringItems, error) {
	key := ExpiringKey(userID, days)
	effective := key[2].(int)
	return cache.Query(ctx, s.store, key, func(ctx context.Context) (*models.ExpiringItems, error) {
		return s.inventory.Expiring(ctx, userID, effective)
	}, cache.Options{})
}

func (s *Service) Recipes(ctx context.Context, userID string, days int) (*models.RecipeSuggestions, error) {
	key := RecipesKey(userID, days)
	effective := key[2].(int)
	return cache.Query(ctx, s.store, key, func(ctx context.Context) (*models.RecipeSuggestions, error) {
		return s.recipes.Recipes(ctx, userID, effective)
	}, cache.Options{StaleTime: recipesStaleTime})
}

func (s *Service) ShoppingList(ctx context.Context, userID string) (*models.ShoppingList, error) {
	return cache.Query(ctx, s.store, ShoppingListKey(userID), func(ctx context.Context) (*models.ShoppingList, error) {
		return s.recipes.ShoppingList(ctx, userID)
	}, cache.Options{StaleTime: recipesStaleTime})
}

func (s *Service) Stats(ctx context.Context, userID string) (*models.Stats, error) {
	return cache.Query(ctx, s.store, StatsKey(userID), func(ctx context.Context) (*models.Stats, error) {
		return s.stats.Get(ctx, userID)
	}, cache.Options{})
}

func (s *Service) Health(ctx context.Context) (*models.Health, error) {
	return cache.Query(ctx, s.store, HealthKey(), func(ctx context.Context) (*models.Health, error) {
		return s.health.Check(ctx)
	}, cache.Options{StaleTime: healthStaleTime})
}

// InvalidateUser marks the user's inventory, expiring and stats entries stale.
func (s *Service) InvalidateUser(userID string) []cache.Key {
	keys := s.store.Invalidate(UserRoots(userID)...)
	s.logger.Debug("user queries invalidated", map[string]interface{}{
		"userId": userID,
		"count":  len(keys),
	})
	return keys
}
