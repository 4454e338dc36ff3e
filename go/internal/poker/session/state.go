package session

import (
	"errors"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker"
)

// CountdownFrom is the first number shown when a reveal starts.
const CountdownFrom = 3

var (
	// ErrRoomNotFound ends a session whose room no longer exists on the server.
	ErrRoomNotFound = errors.New("room not found")
	// ErrConnection ends a session whose connection failed or dropped.
	ErrConnection = errors.New("connection failed")
)

// Phase is the reveal countdown phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCounting
	PhaseRevealing
)

func (p Phase) String() string {
	switch p {
	case PhaseCounting:
		return "counting"
	case PhaseRevealing:
		return "revealing"
	default:
		return "idle"
	}
}

// State is everything one client knows about its room: the last server
// snapshot plus the optimistic local bits layered on top of it.
type State struct {
	RoomID   string
	Username string

	Connected bool
	Room      models.RoomState

	SelectedCard  models.CardValue // empty when no card is selected
	LocalRevealed bool
	ShowAnimation bool
	Countdown     *int
	Phase         Phase

	LastError string
	Exited    bool
	ExitErr   error

	// gen identifies the current countdown. Ticks carrying another value
	// belong to a cancelled countdown and are dropped.
	gen uint64
}

// Clone returns a copy that shares no mutable memory with s.
func (s State) Clone() State {
	out := s
	out.Room = s.Room.Clone()
	if s.Countdown != nil {
		n := *s.Countdown
		out.Countdown = &n
	}
	return out
}

// Average is recomputed from the current votes on every call.
func (s State) Average() *float64 {
	return poker.Average(s.Room.Votes, s.Room.Revealed)
}

func (s State) AllVoted() bool {
	return poker.AllVoted(s.Room.Participants, s.Room.Votes)
}

// CanReveal mirrors when the reveal control is enabled: everyone has voted,
// no countdown is running and the results are not already on screen.
func (s State) CanReveal() bool {
	return !s.ShowResults() && s.AllVoted() && s.Countdown == nil
}

// ShowResults is true once the server revealed and the local countdown
// finished.
func (s State) ShowResults() bool {
	return s.Room.Revealed && s.LocalRevealed
}

func (s State) VoteProgress() (voted, total int) {
	return poker.VoteProgress(s.Room.Participants, s.Room.Votes)
}

func (s State) ChatMessages() []models.Message {
	return poker.ChatMessages(s.Room.Messages)
}
