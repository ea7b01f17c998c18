// internal/models/stats.go
package models

type Stats struct {
	TotalItemsTracked int     `json:"totalItemsTracked"`
	ItemsSaved        int     `json:"itemsSaved"`
	ItemsWasted       int     `json:"itemsWasted"`
	MoneySaved        float64 `json:"moneySaved"`
	PoundsSaved       float64 `json:"poundsSaved"`
	CO2Saved          float64 `json:"co2Saved"`
}
