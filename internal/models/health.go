// internal/models/health.go
package models

type HealthComponents struct {
	FoodDetector  string `json:"foodDetector"`
	DateExtractor string `json:"dateExtractor"`
	Gemini        string `json:"gemini"`
}

type Health struct {
	Status     string           `json:"status"`
	Database   string           `json:"database"`
	Timestamp  string           `json:"timestamp"`
	Components HealthComponents `json:"components"`
}

func (h *Health) Healthy() bool {
	return h != nil && h.Status == "healthy" && h.Database == "connected"
}
