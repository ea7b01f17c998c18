// internal/api/inventory/models.go
package inventory

import "fridgetrack-sync/internal/models"

// itemWire is an inventory document as the backend serializes it. List
// responses key the identifier as "_id"; some responses use "id".
type itemWire struct {
	MongoID         string  `json:"_id"`
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	ItemName        string  `json:"item_name"`
	ExpirationDate  *string `json:"expiration_date"`
	DetectedAt      string  `json:"detected_at"`
	ConfidenceScore float64 `json:"confidence_score"`
	ImageURL        *string `json:"image_url"`
	Quantity        int     `json:"quantity"`
	Category        *string `json:"category"`
	Status          string  `json:"status"`
	DaysLeft        *int    `json:"days_left"`
}

type listResponse struct {
	UserID string     `json:"user_id"`
	Items  []itemWire `json:"items"`
	Total  int        `json:"total"`
}

type expiringResponse struct {
	UserID           string         `json:"user_id"`
	ExpiringItems    []itemWire     `json:"expiring_items"`
	TotalExpiring    int            `json:"total_expiring"`
	UrgencyBreakdown map[string]int `json:"urgency_breakdown"`
}

type statusResponse struct {
	Message string `json:"message"`
	ItemID  string `json:"item_id"`
}

func (w itemWire) toDomain() models.InventoryItem {
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	item := models.InventoryItem{
		ID:              id,
		UserID:          w.UserID,
		Name:            w.ItemName,
		ExpirationDate:  deref(w.ExpirationDate),
		DetectedAt:      w.DetectedAt,
		ConfidenceScore: w.ConfidenceScore,
		Category:        models.Category(deref(w.Category)),
		ImageURL:        deref(w.ImageURL),
		Status:          models.ItemStatus(w.Status),
		DaysLeft:        w.DaysLeft,
	}
	if w.Quantity > 0 {
		item.Quantity = w.Quantity
	}
	if item.Status == "" {
		item.Status = models.StatusActive
	}
	return item
}

func toDomainItems(in []itemWire) []models.InventoryItem {
	out := make([]models.InventoryItem, 0, len(in))
	for _, w := range in {
		out = append(out, w.toDomain())
	}
	return out
}

func (r expiringResponse) toDomain(userID string, days int) *models.ExpiringItems {
	items := toDomainItems(r.ExpiringItems)
	total := r.TotalExpiring
	if total == 0 {
		total = len(items)
	}
	if r.UserID != "" {
		userID = r.UserID
	}
	return &models.ExpiringItems{
		UserID: userID,
		Days:   days,
		Items:  items,
		Total:  total,
		Urgency: models.Urgency{
			Today:    r.UrgencyBreakdown["today"],
			Tomorrow: r.UrgencyBreakdown["tomorrow"],
			ThisWeek: r.UrgencyBreakdown["this_week"],
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
