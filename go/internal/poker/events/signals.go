package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// Signal is a server to client event. The set is closed: only the types in
// this file implement it.
type Signal interface {
	SignalType() EventType
	isSignal()
}

// RoomStateSignal carries a full authoritative snapshot.
type RoomStateSignal struct {
	State models.RoomState
}

// MessageSignal carries one chat or system message.
type MessageSignal struct {
	Message models.Message
}

// StartCountdownSignal tells every client to begin the reveal countdown.
type StartCountdownSignal struct{}

// ErrorSignal is an application error aimed at a single client.
type ErrorSignal struct {
	Text string
}

// VotesResetSignal starts a fresh round.
type VotesResetSignal struct{}

func (RoomStateSignal) SignalType() EventType      { return EventTypeRoomState }
func (MessageSignal) SignalType() EventType        { return EventTypeMessage }
func (StartCountdownSignal) SignalType() EventType { return EventTypeStartCountdown }
func (ErrorSignal) SignalType() EventType          { return EventTypeError }
func (VotesResetSignal) SignalType() EventType     { return EventTypeVotesReset }

func (RoomStateSignal) isSignal()      {}
func (MessageSignal) isSignal()        {}
func (StartCountdownSignal) isSignal() {}
func (ErrorSignal) isSignal()          {}
func (VotesResetSignal) isSignal()     {}

// SignalEnvelope wraps a signal for delivery to a room.
func SignalEnvelope(roomID string, sig Signal) (*Envelope, error) {
	var payload any
	switch s := sig.(type) {
	case RoomStateSignal:
		payload = s.State
	case MessageSignal:
		payload = s.Message
	case ErrorSignal:
		payload = s.Text
	case StartCountdownSignal, VotesResetSignal:
		payload = struct{}{}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, sig)
	}
	return newEnvelope(roomID, sig.SignalType(), payload)
}

// ParseSignal decodes a server to client envelope.
func ParseSignal(env *Envelope) (Signal, error) {
	switch env.Type {
	case EventTypeRoomState:
		var state models.RoomState
		if err := unmarshalPayload(env, &state); err != nil {
			return nil, err
		}
		if state.Votes == nil {
			state.Votes = map[string]models.CardValue{}
		}
		if state.Participants == nil {
			state.Participants = []string{}
		}
		return RoomStateSignal{State: state}, nil

	case EventTypeMessage:
		msg, err := parseMessage(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrMalformedPayload, err)
		}
		return MessageSignal{Message: msg}, nil

	case EventTypeStartCountdown:
		return StartCountdownSignal{}, nil

	case EventTypeError:
		return ErrorSignal{Text: parseErrorText(env.Data)}, nil

	case EventTypeVotesReset:
		return VotesResetSignal{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}

// parseMessage accepts either a full message object or a bare string. A bare
// string becomes a system message stamped with a fresh id and the current
// time.
func parseMessage(data json.RawMessage) (models.Message, error) {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return models.Message{
			ID:        uuid.New().String(),
			Content:   text,
			Timestamp: models.FormatTimestamp(time.Now()),
			Type:      models.MessageTypeSystem,
		}, nil
	}

	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Message{}, err
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeChat
	}
	return msg, nil
}

func parseErrorText(data json.RawMessage) string {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(data)
}
