// internal/api/recipes/models.go
package recipes

import "fridgetrack-sync/internal/models"

type recipeWire struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	PrepTime     string   `json:"prep_time"`
	ItemsUsed    []string `json:"items_used"`
}

type recipesResponse struct {
	Recipes           []recipeWire `json:"recipes"`
	ExpiringItemsUsed []string     `json:"expiring_items_used"`
	Message           string       `json:"message"`
}

type shoppingItemWire struct {
	ItemName  string `json:"item_name"`
	Reason    string `json:"reason"`
	Priority  int    `json:"priority"`
	Frequency int    `json:"frequency"`
}

type shoppingListResponse struct {
	UserID        string             `json:"user_id"`
	ShoppingItems []shoppingItemWire `json:"shopping_items"`
	TotalItems    int                `json:"total_items"`
	GeneratedAt   string             `json:"generated_at"`
}

func (r recipesResponse) toDomain() *models.RecipeSuggestions {
	out := &models.RecipeSuggestions{
		Recipes:           make([]models.Recipe, 0, len(r.Recipes)),
		ExpiringItemsUsed: nonNil(r.ExpiringItemsUsed),
		Message:           r.Message,
	}
	for _, w := range r.Recipes {
		out.Recipes = append(out.Recipes, models.Recipe{
			Name:         w.Name,
			Ingredients:  nonNil(w.Ingredients),
			Instructions: nonNil(w.Instructions),
			PrepTime:     w.PrepTime,
			ItemsUsed:    nonNil(w.ItemsUsed),
		})
	}
	return out
}

func (r shoppingListResponse) toDomain(userID string) *models.ShoppingList {
	out := &models.ShoppingList{
		UserID:      userID,
		Items:       make([]models.ShoppingItem, 0, len(r.ShoppingItems)),
		GeneratedAt: r.GeneratedAt,
	}
	if r.UserID != "" {
		out.UserID = r.UserID
	}
	for _, w := range r.ShoppingItems {
		out.Items = append(out.Items, models.ShoppingItem{
			Name:      w.ItemName,
			Reason:    w.Reason,
			Priority:  w.Priority,
			Frequency: w.Frequency,
		})
	}
	out.Total = r.TotalItems
	if out.Total == 0 {
		out.Total = len(out.Items)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
