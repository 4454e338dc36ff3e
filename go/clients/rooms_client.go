package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

var (
	// ErrRoomCreation wraps every CreateRoom failure.
	ErrRoomCreation = errors.New("failed to create room")
	ErrRoomNotFound = errors.New("room not found")
)

// RoomsClient talks to the room HTTP API.
type RoomsClient struct {
	*BaseClient
}

func NewRoomsClient(baseURL string) *RoomsClient {
	return &RoomsClient{BaseClient: NewBaseClient(baseURL)}
}

// CreateRoom creates a room named name and returns its id.
func (c *RoomsClient) CreateRoom(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}

	data, err := c.Post(ctx, "/api/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRoomCreation, err)
	}

	var resp struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRoomCreation, err)
	}
	if resp.RoomID == "" {
		return "", fmt.Errorf("%w: response has no room_id", ErrRoomCreation)
	}
	return resp.RoomID, nil
}

// GetRoomState fetches the current snapshot of a room.
func (c *RoomsClient) GetRoomState(ctx context.Context, roomID string) (*models.RoomState, error) {
	data, err := c.Get(ctx, "/api/rooms/"+url.PathEscape(roomID)+"/state")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	var state models.RoomState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode room state: %w", err)
	}
	return &state, nil
}

func (c *RoomsClient) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := c.Delete(ctx, "/api/rooms/"+url.PathEscape(roomID))
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ErrRoomNotFound
	}
	return err
}
