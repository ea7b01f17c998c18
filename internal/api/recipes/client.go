// internal/api/recipes/client.go
package recipes

import (
	"context"
	"net/url"
	"strconv"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/retry"
	"fridgetrack-sync/internal/models"
)

const (
	routeRecipes      = "/api/recipes/{user_id}"
	routeShoppingList = "/api/shopping-list/{user_id}"

	// DefaultDays is the expiring window recipes are built around.
	DefaultDays = 3
)

// Client calls the AI-backed endpoints. Both operations run under the retry
// policy because the generator behind them is rate limited.
type Client struct {
	http   *apphttp.Client
	policy retry.Policy
	logger logger.Logger
}

func NewClient(c *apphttp.Client, policy retry.Policy, log logger.Logger) *Client {
	log = logger.OrNop(log)
	if policy.Logger == nil {
		policy.Logger = log
	}
	return &Client{http: c, policy: policy, logger: log}
}

// Recipes suggests recipes for items expiring within days. A 404 yields an
// empty suggestion list.
func (c *Client) Recipes(ctx context.Context, userID string, days int) (*models.RecipeSuggestions, error) {
	if days <= 0 {
		days = DefaultDays
	}
	p := c.policy
	p.Operation = "recipes"

	resp, err := retry.Do(ctx, p, func(ctx context.Context) (recipesResponse, error) {
		return apphttp.Get[recipesResponse](ctx, c.http,
			"/api/recipes/"+url.PathEscape(userID), routeRecipes,
			url.Values{"days": {strconv.Itoa(days)}})
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &models.RecipeSuggestions{Recipes: []models.Recipe{}, ExpiringItemsUsed: []string{}}, nil
		}
		return nil, err
	}
	return resp.toDomain(), nil
}

// ShoppingList asks for purchase suggestions based on recent scans.
func (c *Client) ShoppingList(ctx context.Context, userID string) (*models.ShoppingList, error) {
	p := c.policy
	p.Operation = "shopping_list"

	resp, err := retry.Do(ctx, p, func(ctx context.Context) (shoppingListResponse, error) {
		return apphttp.Get[shoppingListResponse](ctx, c.http,
			"/api/shopping-list/"+url.PathEscape(userID), routeShoppingList, nil)
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &models.ShoppingList{UserID: userID, Items: []models.ShoppingItem{}}, nil
		}
		return nil, err
	}
	return resp.toDomain(userID), nil
}
