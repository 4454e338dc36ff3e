package room

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

// DefaultMaxMessages bounds the chat history kept per room.
const DefaultMaxMessages = 100

var (
	ErrRoomNotFound       = errors.New(events.RoomNotFoundText)
	ErrEmptyRoomName      = errors.New("room name is required")
	ErrEmptyUsername      = errors.New("username is required")
	ErrNotParticipant     = errors.New("not a participant of this room")
	ErrAlreadyRevealed    = errors.New("votes are already revealed")
	ErrInvalidCard        = errors.New("invalid card")
	ErrNotAllVoted        = errors.New("not everyone has voted")
	ErrEmptyTask          = errors.New("task is required")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// CommandType names a room mutation.
type CommandType string

const (
	CommandJoin        CommandType = "join"
	CommandLeave       CommandType = "leave"
	CommandVote        CommandType = "vote"
	CommandNewTask     CommandType = "new_task"
	CommandStartReveal CommandType = "start_reveal"
	CommandReset       CommandType = "reset"
	CommandSendMessage CommandType = "send_message"
)

// Command is one participant action against a room.
type Command struct {
	Type    CommandType
	Actor   string // participant name
	ActorID string // connection id, recorded as the chat sender id
	Card    models.CardValue
	Text    string

	// Filled in by the Manager so Apply stays deterministic.
	At        time.Time
	MessageID string
}

// Result lists the signals to broadcast to the room, in order.
type Result struct {
	Signals []events.Signal
}

// Engine applies commands to room state.
type Engine struct {
	MaxMessages int
}

// Apply validates cmd against s and returns the next state. s is never
// modified.
func (e Engine) Apply(s models.RoomState, cmd Command) (models.RoomState, Result, error) {
	if cmd.Type != CommandJoin && cmd.Type != CommandLeave && !s.HasParticipant(cmd.Actor) {
		return s, Result{}, ErrNotParticipant
	}

	next := s.Clone()
	if next.Votes == nil {
		next.Votes = map[string]models.CardValue{}
	}

	switch cmd.Type {
	case CommandJoin:
		name := strings.TrimSpace(cmd.Actor)
		if name == "" {
			return s, Result{}, ErrEmptyUsername
		}
		if next.HasParticipant(name) {
			return next, Result{Signals: []events.Signal{events.RoomStateSignal{State: next.Clone()}}}, nil
		}
		next.Participants = append(next.Participants, name)
		next.Votes = poker.PruneStaleVotes(next.Participants, next.Votes)
		msg := e.systemMessage(&next, cmd, fmt.Sprintf("%s joined the room", name))
		return next, e.result(next, events.MessageSignal{Message: msg}), nil

	case CommandLeave:
		if !next.HasParticipant(cmd.Actor) {
			return s, Result{}, nil
		}
		kept := next.Participants[:0]
		for _, p := range next.Participants {
			if p != cmd.Actor {
				kept = append(kept, p)
			}
		}
		next.Participants = kept
		next.Votes = poker.PruneStaleVotes(next.Participants, next.Votes)
		msg := e.systemMessage(&next, cmd, fmt.Sprintf("%s left the room", cmd.Actor))
		return next, e.result(next, events.MessageSignal{Message: msg}), nil

	case CommandVote:
		if next.Revealed {
			return s, Result{}, ErrAlreadyRevealed
		}
		if !poker.IsValidCard(cmd.Card) {
			return s, Result{}, fmt.Errorf("%w: %q", ErrInvalidCard, cmd.Card)
		}
		next.Votes[cmd.Actor] = cmd.Card
		return next, e.result(next), nil

	case CommandNewTask:
		task := strings.TrimSpace(cmd.Text)
		if task == "" {
			return s, Result{}, ErrEmptyTask
		}
		next.CurrentTask = &task
		next.Votes = map[string]models.CardValue{}
		next.Revealed = false
		msg := e.systemMessage(&next, cmd, fmt.Sprintf("New task: %s", task))
		return next, e.result(next, events.VotesResetSignal{}, events.MessageSignal{Message: msg}), nil

	case CommandStartReveal:
		if next.Revealed {
			return s, Result{}, ErrAlreadyRevealed
		}
		if !poker.AllVoted(next.Participants, next.Votes) {
			return s, Result{}, ErrNotAllVoted
		}
		next.Revealed = true
		return next, e.result(next, events.StartCountdownSignal{}), nil

	case CommandReset:
		next.Votes = map[string]models.CardValue{}
		next.Revealed = false
		return next, e.result(next, events.VotesResetSignal{}), nil

	case CommandSendMessage:
		text := strings.TrimSpace(cmd.Text)
		if text == "" {
			return s, Result{}, ErrEmptyMessage
		}
		msg := models.Message{
			ID:         cmd.MessageID,
			SenderID:   cmd.ActorID,
			SenderName: cmd.Actor,
			Content:    text,
			Timestamp:  models.FormatTimestamp(cmd.At),
			Type:       models.MessageTypeChat,
		}
		e.appendMessage(&next, msg)
		return next, Result{Signals: []events.Signal{events.MessageSignal{Message: msg}}}, nil
	}

	return s, Result{}, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Type)
}

// result ends every state change with the full snapshot so late joiners and
// reconnecting clients converge.
func (e Engine) result(next models.RoomState, leading ...events.Signal) Result {
	return Result{Signals: append(leading, events.RoomStateSignal{State: next.Clone()})}
}

func (e Engine) systemMessage(s *models.RoomState, cmd Command, text string) models.Message {
	msg := models.Message{
		ID:        cmd.MessageID,
		Content:   text,
		Timestamp: models.FormatTimestamp(cmd.At),
		Type:      models.MessageTypeSystem,
	}
	e.appendMessage(s, msg)
	return msg
}

func (e Engine) appendMessage(s *models.RoomState, msg models.Message) {
	limit := e.MaxMessages
	if limit <= 0 {
		limit = DefaultMaxMessages
	}
	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > limit {
		s.Messages = append([]models.Message{}, s.Messages[len(s.Messages)-limit:]...)
	}
}
