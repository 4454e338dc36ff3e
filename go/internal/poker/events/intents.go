package events

import (
	"fmt"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// Intent is a client to server request. Like Signal, the set is closed.
type Intent interface {
	IntentType() EventType
	isIntent()
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type CastVote struct {
	Value models.CardValue `json:"value"`
}

type NewTask struct {
	Task string `json:"task"`
}

type StartReveal struct{}

type ResetVotes struct{}

type SendMessage struct {
	Message string             `json:"message"`
	Type    models.MessageType `json:"type"`
}

func (JoinRoom) IntentType() EventType    { return EventTypeJoinRoom }
func (CastVote) IntentType() EventType    { return EventTypeVote }
func (NewTask) IntentType() EventType     { return EventTypeNewTask }
func (StartReveal) IntentType() EventType { return EventTypeStartReveal }
func (ResetVotes) IntentType() EventType  { return EventTypeReset }
func (SendMessage) IntentType() EventType { return EventTypeSendMessage }

func (JoinRoom) isIntent()    {}
func (CastVote) isIntent()    {}
func (NewTask) isIntent()     {}
func (StartReveal) isIntent() {}
func (ResetVotes) isIntent()  {}
func (SendMessage) isIntent() {}

// IntentEnvelope wraps an intent for sending to the server.
func IntentEnvelope(roomID string, intent Intent) (*Envelope, error) {
	return newEnvelope(roomID, intent.IntentType(), intent)
}

// ParseIntent decodes a client to server envelope.
func ParseIntent(env *Envelope) (Intent, error) {
	switch env.Type {
	case EventTypeJoinRoom:
		var in JoinRoom
		if err := unmarshalPayload(env, &in); err != nil {
			return nil, err
		}
		if in.RoomID == "" {
			in.RoomID = env.RoomID
		}
		return in, nil

	case EventTypeVote:
		var in CastVote
		if err := unmarshalPayload(env, &in); err != nil {
			return nil, err
		}
		return in, nil

	case EventTypeNewTask:
		var in NewTask
		if err := unmarshalPayload(env, &in); err != nil {
			return nil, err
		}
		return in, nil

	case EventTypeStartReveal:
		return StartReveal{}, nil

	case EventTypeReset:
		return ResetVotes{}, nil

	case EventTypeSendMessage:
		var in SendMessage
		if err := unmarshalPayload(env, &in); err != nil {
			return nil, err
		}
		if in.Type == "" {
			in.Type = models.MessageTypeChat
		}
		return in, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}
