// internal/models/scan.go
package models

// Detection is one item found in a scanned image.
type Detection struct {
	Name           string    `json:"name"`
	Confidence     float64   `json:"confidence"`
	BoundingBox    []float64 `json:"boundingBox"`
	ExpirationDate string    `json:"expirationDate,omitempty"`
}

type ScanResult struct {
	ScanID         string      `json:"scanId"`
	Items          []Detection `json:"items"`
	Total          int         `json:"total"`
	ProcessingTime float64     `json:"processingTime"`
	Message        string      `json:"message"`
}
