package session

import (
	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

// Input is anything that can change a session's State. The set is closed.
type Input interface {
	isInput()
}

// Connected is delivered once the transport is open.
type Connected struct{}

// ConnectionLost is delivered when connecting fails or the socket drops.
type ConnectionLost struct {
	Err error
}

// Inbound wraps a signal received from the server.
type Inbound struct {
	Signal events.Signal
}

// User actions.
type (
	Vote struct {
		Value models.CardValue
	}
	NewTask struct {
		Text string
	}
	Reveal      struct{}
	Reset       struct{}
	SendMessage struct {
		Text string
	}
	Leave struct{}
)

// Tick is posted by the countdown timer.
type Tick struct {
	Gen uint64
}

// revealNow finishes a countdown that reached zero.
type revealNow struct {
	gen uint64
}

func (Connected) isInput()      {}
func (ConnectionLost) isInput() {}
func (Inbound) isInput()        {}
func (Vote) isInput()           {}
func (NewTask) isInput()        {}
func (Reveal) isInput()         {}
func (Reset) isInput()          {}
func (SendMessage) isInput()    {}
func (Leave) isInput()          {}
func (Tick) isInput()           {}
func (revealNow) isInput()      {}
