// internal/models/recipes.go
package models

type Recipe struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	PrepTime     string   `json:"prepTime"`
	ItemsUsed    []string `json:"itemsUsed"`
}

type RecipeSuggestions struct {
	Recipes           []Recipe `json:"recipes"`
	ExpiringItemsUsed []string `json:"expiringItemsUsed"`
	Message           string   `json:"message"`
}

// ShoppingItem is a suggested purchase. Priority runs 1-5, 5 highest.
type ShoppingItem struct {
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Priority  int    `json:"priority"`
	Frequency int    `json:"frequency"`
}

type ShoppingList struct {
	UserID      string         `json:"userId"`
	Items       []ShoppingItem `json:"items"`
	Total       int            `json:"total"`
	GeneratedAt string         `json:"generatedAt,omitempty"`
}
