// internal/api/stats/client.go
package stats

import (
	"context"
	"net/url"

	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/models"
)

const routeStats = "/api/stats/{user_id}"

type Client struct {
	http *apphttp.Client
}

func NewClient(c *apphttp.Client) *Client {
	return &Client{http: c}
}

// Get returns the user's savings and waste totals.
func (c *Client) Get(ctx context.Context, userID string) (*models.Stats, error) {
	resp, err := apphttp.Get[statsResponse](ctx, c.http, "/api/stats/"+url.PathEscape(userID), routeStats, nil)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}
