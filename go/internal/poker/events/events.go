package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope is the frame exchanged over the room websocket. Every signal and
// intent travels inside one.
type Envelope struct {
	ID        string          `json:"id,omitempty"`      // Event UUID
	RoomID    string          `json:"room_id,omitempty"` // Room the event belongs to
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	Data      json.RawMessage `json:"data,omitempty"` // Event-specific payload
}

// EventType names a signal or intent on the wire.
type EventType string

// Server to client.
const (
	EventTypeRoomState      EventType = "room_state"
	EventTypeMessage        EventType = "message"
	EventTypeStartCountdown EventType = "start_countdown"
	EventTypeError          EventType = "error"
	EventTypeVotesReset     EventType = "votes_reset"
)

// Client to server.
const (
	EventTypeJoinRoom    EventType = "join_room"
	EventTypeVote        EventType = "vote"
	EventTypeNewTask     EventType = "new_task"
	EventTypeStartReveal EventType = "start_reveal"
	EventTypeReset       EventType = "reset"
	EventTypeSendMessage EventType = "send_message"
)

// RoomNotFoundText is the error text the server sends for an unknown room.
const RoomNotFoundText = "room not found"

// legacyRoomNotFoundText is what older servers send for the same condition.
const legacyRoomNotFoundText = "Sala não encontrada"

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
)

// IsRoomNotFound reports whether an error signal means the room is gone.
func IsRoomNotFound(text string) bool {
	text = strings.TrimSpace(text)
	return strings.EqualFold(text, RoomNotFoundText) || text == legacyRoomNotFoundText
}

// Parse decodes a raw websocket frame into an envelope.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}
	return &env, nil
}

func newEnvelope(roomID string, typ EventType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

func unmarshalPayload(env *Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Type, err)
	}
	return nil
}
