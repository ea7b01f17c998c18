// internal/api/stats/models.go
package stats

import "fridgetrack-sync/internal/models"

type statsResponse struct {
	TotalItemsTracked int     `json:"total_items_tracked"`
	ItemsSaved        int     `json:"items_saved"`
	ItemsWasted       int     `json:"items_wasted"`
	MoneySaved        float64 `json:"money_saved"`
	PoundsSaved       float64 `json:"pounds_saved"`
	CO2Saved          float64 `json:"co2_saved"`
}

func (r statsResponse) toDomain() *models.Stats {
	return &models.Stats{
		TotalItemsTracked: r.TotalItemsTracked,
		ItemsSaved:        r.ItemsSaved,
		ItemsWasted:       r.ItemsWasted,
		MoneySaved:        r.MoneySaved,
		PoundsSaved:       r.PoundsSaved,
		CO2Saved:          r.CO2Saved,
	}
}
