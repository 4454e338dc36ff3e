package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker"
)

// sessionKey holds the pointer to the room the client was last in.
const sessionKey = "roomState"

func roomStateKey(roomID string) string { return "room_" + roomID + "_state" }
func roomVoteKey(roomID string) string  { return "room_" + roomID + "_vote" }

// RoomCache is the client side persistence adapter. Unreadable entries are
// treated as absent so a corrupt cache never blocks rejoining a room.
type RoomCache struct {
	kv KV
}

func NewRoomCache(kv KV) *RoomCache {
	return &RoomCache{kv: kv}
}

func (c *RoomCache) SaveRoomState(ctx context.Context, roomID string, state models.RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}
	return c.kv.Set(ctx, roomStateKey(roomID), string(data))
}

// LoadRoomState returns nil when nothing usable is cached.
func (c *RoomCache) LoadRoomState(ctx context.Context, roomID string) (*models.RoomState, error) {
	raw, ok, err := c.kv.Get(ctx, roomStateKey(roomID))
	if err != nil || !ok {
		return nil, err
	}

	var state models.RoomState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("ignoring malformed cached room state")
		return nil, nil
	}
	if state.Votes == nil {
		state.Votes = map[string]models.CardValue{}
	}
	if state.Participants == nil {
		state.Participants = []string{}
	}
	return &state, nil
}

func (c *RoomCache) SaveVote(ctx context.Context, roomID string, value models.CardValue) error {
	return c.kv.Set(ctx, roomVoteKey(roomID), string(value))
}

// LoadVote returns the cached card, or false if none is stored or the
// stored value is not a playable card.
func (c *RoomCache) LoadVote(ctx context.Context, roomID string) (models.CardValue, bool, error) {
	raw, ok, err := c.kv.Get(ctx, roomVoteKey(roomID))
	if err != nil || !ok {
		return "", false, err
	}
	v := models.CardValue(raw)
	if !poker.IsValidCard(v) {
		log.Warn().Str("room_id", roomID).Str("value", raw).Msg("ignoring malformed cached vote")
		return "", false, nil
	}
	return v, true, nil
}

func (c *RoomCache) ClearVote(ctx context.Context, roomID string) error {
	return c.kv.Delete(ctx, roomVoteKey(roomID))
}

// ClearRoomData removes both the cached room state and vote.
func (c *RoomCache) ClearRoomData(ctx context.Context, roomID string) error {
	return c.kv.Delete(ctx, roomStateKey(roomID), roomVoteKey(roomID))
}

func (c *RoomCache) SaveSession(ctx context.Context, ptr models.SessionPointer) error {
	data, err := json.Marshal(ptr)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.kv.Set(ctx, sessionKey, string(data))
}

// LoadSession returns nil when the client was not in a room.
func (c *RoomCache) LoadSession(ctx context.Context) (*models.SessionPointer, error) {
	raw, ok, err := c.kv.Get(ctx, sessionKey)
	if err != nil || !ok {
		return nil, err
	}

	var ptr models.SessionPointer
	if err := json.Unmarshal([]byte(raw), &ptr); err != nil {
		log.Warn().Err(err).Msg("ignoring malformed cached session")
		return nil, nil
	}
	if !ptr.InRoom || ptr.RoomID == "" || ptr.Username == "" {
		return nil, nil
	}
	return &ptr, nil
}

func (c *RoomCache) ClearSession(ctx context.Context) error {
	return c.kv.Delete(ctx, sessionKey)
}
