// internal/api/scan/models.go
package scan

import "fridgetrack-sync/internal/models"

// File is an image ready for upload.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type detectionWire struct {
	ItemName       string    `json:"item_name"`
	Confidence     float64   `json:"confidence"`
	BoundingBox    []float64 `json:"bounding_box"`
	ExpirationDate *string   `json:"expiration_date"`
}

type scanResponse struct {
	ScanID         string          `json:"scan_id"`
	ItemsDetected  []detectionWire `json:"items_detected"`
	TotalItems     int             `json:"total_items"`
	ProcessingTime float64         `json:"processing_time"`
	Message        string          `json:"message"`
}

func (r scanResponse) toDomain() *models.ScanResult {
	items := make([]models.Detection, 0, len(r.ItemsDetected))
	for _, d := range r.ItemsDetected {
		det := models.Detection{
			Name:        d.ItemName,
			Confidence:  d.Confidence,
			BoundingBox: d.BoundingBox,
		}
		if d.ExpirationDate != nil {
			det.ExpirationDate = *d.ExpirationDate
		}
		items = append(items, det)
	}
	total := r.TotalItems
	if total == 0 {
		total = len(items)
	}
	return &models.ScanResult{
		ScanID:         r.ScanID,
		Items:          items,
		Total:          total,
		ProcessingTime: r.ProcessingTime,
		Message:        r.Message,
	}
}
