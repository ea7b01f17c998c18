// internal/api/health/models.go
package health

import "fridgetrack-sync/internal/models"

type healthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Database   string `json:"database"`
	Components struct {
		FoodDetector  string `json:"food_detector"`
		DateExtractor string `json:"date_extractor"`
		Gemini        string `json:"gemini"`
	} `json:"components"`
}

func (r healthResponse) toDomain() *models.Health {
	return &models.Health{
		Status:    r.Status,
		Database:  r.Database,
		Timestamp: r.Timestamp,
		Components: models.HealthComponents{
			FoodDetector:  r.Components.FoodDetector,
			DateExtractor: r.Components.DateExtractor,
			Gemini:        r.Components.Gemini,
		},
	}
}
