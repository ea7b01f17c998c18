// internal/api/inventory/client.go
package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/models"
)

// DefaultExpiringDays is the lookahead window used when none is given.
const DefaultExpiringDays = 3

const (
	routeList     = "/api/inventory/{user_id}"
	routeExpiring = "/api/expiring-items/{user_id}"
	routeStatus   = "/api/items/{item_id}/status"

	msgItemNotFound = "Item not found. It may have already been removed."
	msgInvalidInput = "Invalid input. Please check the item details and try again."
)

// Client exposes the inventory resource.
type Client struct {
	http   *apphttp.Client
	logger logger.Logger
}

func NewClient(c *apphttp.Client, log logger.Logger) *Client {
	return &Client{http: c, logger: logger.OrNop(log)}
}

// List returns the user's items with the given status. An unknown user
// yields an empty, non-nil slice.
func (c *Client) List(ctx context.Context, userID string, status models.ItemStatus) ([]models.InventoryItem, error) {
	if status == "" {
		status = models.StatusActive
	}
	resp, err := apphttp.Get[listResponse](ctx, c.http,
		"/api/inventory/"+url.PathEscape(userID), routeList,
		url.Values{"status": {string(status)}})
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.logger.Debug("inventory not found, treating as empty", map[string]interface{}{"userId": userID})
			return []models.InventoryItem{}, nil
		}
		return nil, err
	}
	return toDomainItems(resp.Items), nil
}

// Expiring returns items expiring within days. days <= 0 means the default
// window; the effective window is echoed back in the result.
func (c *Client) Expiring(ctx context.Context, userID string, days int) (*models.ExpiringItems, error) {
	days = NormalizeDays(days)
	resp, err := apphttp.Get[expiringResponse](ctx, c.http,
		"/api/expiring-items/"+url.PathEscape(userID), routeExpiring,
		url.Values{"days": {strconv.Itoa(days)}})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &models.ExpiringItems{UserID: userID, Days: days, Items: []models.InventoryItem{}}, nil
		}
		return nil, err
	}
	return resp.toDomain(userID, days), nil
}

// NormalizeDays applies the default lookahead window.
func NormalizeDays(days int) int {
	if days <= 0 {
		return DefaultExpiringDays
	}
	return days
}

// UpdateStatus moves an item to status. Unknown statuses are rejected
// locally; 404 and 422 are reworded without changing the status code.
func (c *Client) UpdateStatus(ctx context.Context, itemID string, status models.ItemStatus) (*models.StatusUpdate, error) {
	if _, err := models.ParseItemStatus(string(status)); err != nil {
		return nil, apperrors.NewValidationError("Invalid status. Use: active, consumed, or wasted.")
	}
	if itemID == "" {
		return nil, apperrors.NewValidationError("Item id is required.")
	}

	var resp statusResponse
	err := c.http.Do(ctx, &apphttp.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/api/items/%s/status", url.PathEscape(itemID)),
		Route:  routeStatus,
		Form:   url.Values{"status": {string(status)}},
	}, &resp)
	if err != nil {
		return nil, remapMutation(err)
	}

	if resp.ItemID == "" {
		resp.ItemID = itemID
	}
	return &models.StatusUpdate{ItemID: resp.ItemID, Status: status, Message: resp.Message}, nil
}

// Create, Update and Delete are generic CRUD operations the backend does
// not expose. They fail without touching the network.
func (c *Client) Create(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error) {
	return nil, apperrors.NewNotImplementedError("Adding items manually")
}

func (c *Client) Update(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error) {
	return nil, apperrors.NewNotImplementedError("Editing items")
}

func (c *Client) Delete(ctx context.Context, itemID string) error {
	return apperrors.NewNotImplementedError("Deleting items")
}

func remapMutation(err error) error {
	switch apperrors.StatusOf(err) {
	case http.StatusNotFound:
		return apperrors.Remap(err, http.StatusNotFound, msgItemNotFound)
	case http.StatusUnprocessableEntity:
		return apperrors.Remap(err, http.StatusUnprocessableEntity, msgInvalidInput)
	}
	return err
}
