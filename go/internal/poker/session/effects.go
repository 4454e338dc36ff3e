package session

import (
	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

// Effect is work the Session performs after a transition. Reduce never does
// I/O itself.
type Effect interface {
	isEffect()
}

type (
	// Send emits an intent over the transport.
	Send struct {
		Intent events.Intent
	}
	SaveRoom struct {
		State models.RoomState
	}
	SaveVote struct {
		Value models.CardValue
	}
	ClearVote struct{}
	// ClearRoomData drops the cached room state, vote and session pointer.
	ClearRoomData struct{}
	// RememberRoom stores the session pointer so the client can resume.
	RememberRoom struct{}
	// ScheduleTick arms the countdown timer for generation Gen.
	ScheduleTick struct {
		Gen uint64
	}
	CancelTick struct{}
	// Followup applies Input right after the current transition is published.
	Followup struct {
		Input Input
	}
	Alert struct {
		Text string
	}
	CloseConnection struct{}
)

func (Send) isEffect()            {}
func (SaveRoom) isEffect()        {}
func (SaveVote) isEffect()        {}
func (ClearVote) isEffect()       {}
func (ClearRoomData) isEffect()   {}
func (RememberRoom) isEffect()    {}
func (ScheduleTick) isEffect()    {}
func (CancelTick) isEffect()      {}
func (Followup) isEffect()        {}
func (Alert) isEffect()           {}
func (CloseConnection) isEffect() {}
