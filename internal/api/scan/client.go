// internal/api/scan/client.go
package scan

import (
	"context"
	"net/http"

	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/models"
)

const (
	routeScan = "/api/scan"

	MsgProcessingTimeout = "Processing took too long. Try a smaller image or a simpler scene."
	MsgTooLarge          = "Image is too large for the server. Please use a file under 10MB."
	MsgUnprocessable     = "The image could not be processed. Try a clearer photo with better lighting."
)

type Client struct {
	http   *apphttp.Client
	logger logger.Logger
}

func NewClient(c *apphttp.Client, log logger.Logger) *Client {
	return &Client{http: c, logger: logger.OrNop(log)}
}

// Upload posts the image with the user id as multipart form data. An
// expired upload deadline is reported as 408 rather than a network failure.
// A cancelled ctx keeps status 0.
func (c *Client) Upload(ctx context.Context, userID string, file File, progress apphttp.ProgressFunc) (*models.ScanResult, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("User id is required to scan.")
	}
	if len(file.Content) == 0 {
		return nil, apperrors.NewValidationError("No image selected.")
	}

	var resp scanResponse
	err := c.http.Upload(ctx, &apphttp.UploadRequest{
		Path:        routeScan,
		Route:       routeScan,
		Fields:      map[string]string{"user_id": userID},
		FileField:   "image",
		FileName:    file.Name,
		ContentType: file.ContentType,
		Content:     file.Content,
		Progress:    progress,
	}, &resp)
	if err != nil {
		return nil, c.remap(err)
	}

	result := resp.toDomain()
	c.logger.Info("scan processed", map[string]interface{}{
		"userId":         userID,
		"scanId":         result.ScanID,
		"itemsDetected":  len(result.Items),
		"processingTime": result.ProcessingTime,
	})
	return result, nil
}

func (c *Client) remap(err error) error {
	se := apperrors.Ensure(err)
	switch {
	case se.Kind == apperrors.KindTimeout:
		return apperrors.NewTimeoutError(MsgProcessingTimeout, http.StatusRequestTimeout, se)
	case se.Status == http.StatusRequestEntityTooLarge:
		return apperrors.Remap(se, se.Status, MsgTooLarge)
	case se.Status == http.StatusUnprocessableEntity:
		return apperrors.Remap(se, se.Status, MsgUnprocessable)
	}
	return se
}
