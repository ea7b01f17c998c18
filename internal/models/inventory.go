// internal/models/inventory.go
package models

import "fmt"

// ItemStatus is the lifecycle state of an inventory item on the server.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusConsumed ItemStatus = "consumed"
	StatusWasted   ItemStatus = "wasted"
)

// ParseItemStatus accepts only the statuses the backend understands.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case StatusActive, StatusConsumed, StatusWasted:
		return ItemStatus(s), nil
	}
	return "", fmt.Errorf("invalid status %q: use active, consumed, or wasted", s)
}

// Category is an optional food grouping assigned by the detector.
type Category string

const (
	CategoryDairy     Category = "dairy"
	CategoryProduce   Category = "produce"
	CategoryMeat      Category = "meat"
	CategorySeafood   Category = "seafood"
	CategoryBakery    Category = "bakery"
	CategoryBeverages Category = "beverages"
	CategoryLeftovers Category = "leftovers"
	CategoryOther     Category = "other"
)

// InventoryItem is the client-side projection of a tracked food item.
// ExpirationDate is an ISO date or empty for "no expiry".
type InventoryItem struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Name            string     `json:"name"`
	ExpirationDate  string     `json:"expirationDate"`
	DetectedAt      string     `json:"detectedAt"`
	ConfidenceScore float64    `json:"confidenceScore"`
	Category        Category   `json:"category,omitempty"`
	Quantity        int        `json:"quantity,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Status          ItemStatus `json:"status"`
	DaysLeft        *int       `json:"daysLeft,omitempty"`
}

// Urgency counts expiring items by how soon they expire.
type Urgency struct {
	Today    int `json:"today"`
	Tomorrow int `json:"tomorrow"`
	ThisWeek int `json:"thisWeek"`
}

// ExpiringItems is the result of an expiring-items lookup for a window of Days.
type ExpiringItems struct {
	UserID  string          `json:"userId"`
	Days    int             `json:"days"`
	Items   []InventoryItem `json:"items"`
	Total   int             `json:"total"`
	Urgency Urgency         `json:"urgency"`
}

// StatusUpdate acknowledges a status change.
type StatusUpdate struct {
	ItemID  string     `json:"itemId"`
	Status  ItemStatus `json:"status"`
	Message string     `json:"message"`
}

// WithoutItem returns a copy of items with every entry matching id removed.
func WithoutItem(items []InventoryItem, id string) []InventoryItem {
	out := make([]InventoryItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
