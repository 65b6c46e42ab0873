package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/utils"
)

// ValidateRoom asks the coordinator whether roomID exists and which files
// it announces.
func (c *Client) ValidateRoom(ctx context.Context, roomID string) (*models.RoomStatus, error) {
	body, err := json.Marshal(models.ValidateRoomRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, utils.BuildHTTPURL(c.baseURL, "/isValidRoom"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build room query: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("room query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("room query failed with status %d", resp.StatusCode)
	}
	var status models.RoomStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("invalid room status: %w", err)
	}
	return &status, nil
}
