// internal/api/health/client.go
package health

import (
	"context"

	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/models"
)

type Client struct {
	http *apphttp.Client
}

func NewClient(c *apphttp.Client) *Client {
	return &Client{http: c}
}

// Check reports backend and component status.
func (c *Client) Check(ctx context.Context) (*models.Health, error) {
	resp, err := apphttp.Get[healthResponse](ctx, c.http, "/health", "/health", nil)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}
