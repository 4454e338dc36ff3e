package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

func newState() State {
	return State{
		RoomID:    "r1",
		Username:  "ana",
		Connected: true,
		Room: models.RoomState{
			Participants: []string{"ana", "bo"},
			Votes:        map[string]models.CardValue{},
			Name:         "Squad",
		},
	}
}

// reduceAll feeds inputs in order and runs Followup effects inline, the way
// Session does.
func reduceAll(s State, inputs ...Input) (State, []Effect) {
	var all []Effect
	for _, in := range inputs {
		var effects []Effect
		s, effects = Reduce(s, in)
		for i := 0; i < len(effects); i++ {
			if f, ok := effects[i].(Followup); ok {
				var more []Effect
				s, more = Reduce(s, f.Input)
				effects = append(effects, more...)
			}
		}
		all = append(all, effects...)
	}
	return s, all
}

func sentIntents(effects []Effect) []events.Intent {
	var out []events.Intent
	for _, e := range effects {
		if s, ok := e.(Send); ok {
			out = append(out, s.Intent)
		}
	}
	return out
}

func hasEffect[T Effect](effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func snapshot(revealed bool, votes map[string]models.CardValue) Input {
	return Inbound{Signal: events.RoomStateSignal{State: models.RoomState{
		Participants: []string{"ana", "bo"},
		Votes:        votes,
		Revealed:     revealed,
		Name:         "Squad",
	}}}
}

func TestReduce_ConnectedJoinsRoom(t *testing.T) {
	s := newState()
	s.Connected = false

	s, effects := Reduce(s, Connected{})

	assert.True(t, s.Connected)
	assert.Equal(t, []events.Intent{events.JoinRoom{RoomID: "r1", Username: "ana"}}, sentIntents(effects))
	assert.True(t, hasEffect[RememberRoom](effects))
}

func TestReduce_Vote(t *testing.T) {
	t.Run("selects and sends", func(t *testing.T) {
		s, effects := Reduce(newState(), Vote{Value: "5"})

		assert.Equal(t, models.CardValue("5"), s.SelectedCard)
		assert.Equal(t, []Effect{
			SaveVote{Value: "5"},
			Send{Intent: events.CastVote{Value: "5"}},
		}, effects)
	})

	t.Run("no-op while revealed", func(t *testing.T) {
		before := newState()
		before.Room.Revealed = true
		before.SelectedCard = "3"

		after, effects := Reduce(before, Vote{Value: "8"})

		assert.Equal(t, before, after)
		assert.Empty(t, effects)
	})

	t.Run("rejects cards outside the deck", func(t *testing.T) {
		s, effects := Reduce(newState(), Vote{Value: "4"})

		assert.Empty(t, s.SelectedCard)
		assert.NotEmpty(t, s.LastError)
		assert.Empty(t, effects)
	})
}

func TestReduce_CountdownRunsToReveal(t *testing.T) {
	s, effects := Reduce(newState(), Inbound{Signal: events.StartCountdownSignal{}})
	require.NotNil(t, s.Countdown)
	assert.Equal(t, 3, *s.Countdown)
	assert.Equal(t, PhaseCounting, s.Phase)
	assert.Contains(t, effects, Effect(ScheduleTick{Gen: s.gen}))

	var seen []int
	for i := 0; i < 3; i++ {
		s, effects = Reduce(s, Tick{Gen: s.gen})
		require.NotNil(t, s.Countdown)
		seen = append(seen, *s.Countdown)
	}
	assert.Equal(t, []int{2, 1, 0}, seen)
	assert.False(t, s.LocalRevealed, "zero is shown before the reveal")

	require.Len(t, effects, 1)
	follow, ok := effects[0].(Followup)
	require.True(t, ok)

	s, _ = Reduce(s, follow.Input)
	assert.True(t, s.LocalRevealed)
	assert.True(t, s.ShowAnimation)
	assert.Nil(t, s.Countdown)
	assert.Equal(t, PhaseRevealing, s.Phase)
}

func TestReduce_StaleTickIsDropped(t *testing.T) {
	s, _ := Reduce(newState(), Inbound{Signal: events.StartCountdownSignal{}})
	oldGen := s.gen

	// a second start replaces the first countdown
	s, _ = Reduce(s, Inbound{Signal: events.StartCountdownSignal{}})
	require.NotEqual(t, oldGen, s.gen)

	after, effects := Reduce(s, Tick{Gen: oldGen})
	assert.Equal(t, 3, *after.Countdown)
	assert.Empty(t, effects)
}

func TestReduce_SnapshotLeavesLocalStateAlone(t *testing.T) {
	s, _ := Reduce(newState(), Vote{Value: "8"})
	s, _ = Reduce(s, Inbound{Signal: events.StartCountdownSignal{}})

	s, effects := Reduce(s, snapshot(true, map[string]models.CardValue{"ana": "8", "bo": "3"}))

	assert.Equal(t, models.CardValue("8"), s.SelectedCard)
	assert.Equal(t, 3, *s.Countdown)
	assert.False(t, s.LocalRevealed)
	assert.True(t, s.Room.Revealed)
	assert.Equal(t, []Effect{SaveRoom{State: s.Room}}, effects)
}

func TestReduce_SnapshotUnrevealedEndsRevealing(t *testing.T) {
	s, _ := reduceAll(newState(),
		Inbound{Signal: events.StartCountdownSignal{}},
	)
	s, _ = reduceAll(s, Tick{Gen: s.gen}, Tick{Gen: s.gen}, Tick{Gen: s.gen})
	require.Equal(t, PhaseRevealing, s.Phase)

	s, _ = Reduce(s, snapshot(false, map[string]models.CardValue{}))

	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.LocalRevealed)
	assert.False(t, s.ShowAnimation)
}

func TestReduce_VotesResetClearsRound(t *testing.T) {
	s := newState()
	s.SelectedCard = "5"
	s.LocalRevealed = true
	s.ShowAnimation = true
	s.Phase = PhaseRevealing

	// the server already showed an unrevealed room; the reset must still clear
	s, _ = Reduce(s, snapshot(false, map[string]models.CardValue{}))
	s.SelectedCard = "5"

	s, effects := Reduce(s, Inbound{Signal: events.VotesResetSignal{}})

	assert.Empty(t, s.SelectedCard)
	assert.False(t, s.LocalRevealed)
	assert.False(t, s.ShowAnimation)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.True(t, hasEffect[ClearVote](effects))
}

func TestReduce_VotesResetCancelsCountdown(t *testing.T) {
	s, _ := Reduce(newState(), Inbound{Signal: events.StartCountdownSignal{}})
	gen := s.gen

	s, effects := Reduce(s, Inbound{Signal: events.VotesResetSignal{}})

	assert.Nil(t, s.Countdown)
	assert.True(t, hasEffect[CancelTick](effects))

	s, effects = Reduce(s, Tick{Gen: gen})
	assert.Nil(t, s.Countdown)
	assert.Empty(t, effects)
}

func TestReduce_NewTask(t *testing.T) {
	t.Run("blank task is ignored", func(t *testing.T) {
		before := newState()
		after, effects := Reduce(before, NewTask{Text: "   "})
		assert.Equal(t, before, after)
		assert.Empty(t, effects)
	})

	t.Run("sends trimmed task and clears the round", func(t *testing.T) {
		s := newState()
		s.SelectedCard = "13"

		s, effects := Reduce(s, NewTask{Text: "  checkout flow "})

		assert.Empty(t, s.SelectedCard)
		assert.Equal(t, []events.Intent{events.NewTask{Task: "checkout flow"}}, sentIntents(effects))
		assert.True(t, hasEffect[ClearVote](effects))
	})
}

func TestReduce_RevealNeverForcesLocalReveal(t *testing.T) {
	s, effects := Reduce(newState(), Reveal{})

	assert.False(t, s.LocalRevealed)
	assert.Nil(t, s.Countdown)
	assert.Equal(t, []events.Intent{events.StartReveal{}}, sentIntents(effects))
}

func TestReduce_ResetSendsAndClears(t *testing.T) {
	s := newState()
	s.SelectedCard = "2"

	s, effects := Reduce(s, Reset{})

	assert.Empty(t, s.SelectedCard)
	assert.Equal(t, []events.Intent{events.ResetVotes{}}, sentIntents(effects))
}

func TestReduce_SendMessage(t *testing.T) {
	_, effects := Reduce(newState(), SendMessage{Text: "  "})
	assert.Empty(t, effects)

	_, effects = Reduce(newState(), SendMessage{Text: " hello "})
	assert.Equal(t, []events.Intent{events.SendMessage{Message: "hello", Type: models.MessageTypeChat}}, sentIntents(effects))
}

func TestReduce_MessageDeduplicatesByID(t *testing.T) {
	msg := models.Message{ID: "m1", SenderName: "bo", Content: "hi", Timestamp: "2024-05-01T10:00:00Z", Type: models.MessageTypeChat}

	s, _ := Reduce(newState(), Inbound{Signal: events.MessageSignal{Message: msg}})
	s, effects := Reduce(s, Inbound{Signal: events.MessageSignal{Message: msg}})

	assert.Len(t, s.Room.Messages, 1)
	assert.Empty(t, effects)
	assert.Len(t, s.ChatMessages(), 1)
}

func TestReduce_ErrorSignals(t *testing.T) {
	t.Run("advisory errors keep the session", func(t *testing.T) {
		s, effects := Reduce(newState(), Inbound{Signal: events.ErrorSignal{Text: "not everyone has voted"}})

		assert.False(t, s.Exited)
		assert.Equal(t, "not everyone has voted", s.LastError)
		assert.Equal(t, []Effect{Alert{Text: "not everyone has voted"}}, effects)
	})

	t.Run("room not found ends the session", func(t *testing.T) {
		s, _ := Reduce(newState(), Inbound{Signal: events.StartCountdownSignal{}})

		s, effects := Reduce(s, Inbound{Signal: events.ErrorSignal{Text: events.RoomNotFoundText}})

		assert.True(t, s.Exited)
		assert.ErrorIs(t, s.ExitErr, ErrRoomNotFound)
		assert.Nil(t, s.Countdown)
		assert.True(t, hasEffect[CancelTick](effects))
		assert.True(t, hasEffect[CloseConnection](effects))
		assert.True(t, hasEffect[ClearRoomData](effects))
	})
}

func TestReduce_ConnectionLostIsFatal(t *testing.T) {
	s, effects := Reduce(newState(), ConnectionLost{Err: errors.New("refused")})

	assert.True(t, s.Exited)
	assert.ErrorIs(t, s.ExitErr, ErrConnection)
	assert.False(t, s.Connected)
	assert.True(t, hasEffect[ClearRoomData](effects))
}

func TestReduce_LeaveMidCountdown(t *testing.T) {
	s, _ := Reduce(newState(), Inbound{Signal: events.StartCountdownSignal{}})
	gen := s.gen

	s, effects := Reduce(s, Leave{})
	require.True(t, s.Exited)
	assert.NoError(t, s.ExitErr)
	assert.Equal(t, []Effect{CancelTick{}, CloseConnection{}, ClearRoomData{}}, effects)

	// nothing moves after the session exits
	after, effects := Reduce(s, Tick{Gen: gen})
	assert.Equal(t, s, after)
	assert.Empty(t, effects)
	assert.False(t, after.LocalRevealed)
}

func TestCanRevealScenario(t *testing.T) {
	s, _ := Reduce(newState(), snapshot(false, map[string]models.CardValue{"ana": "5"}))
	assert.False(t, s.AllVoted())
	assert.False(t, s.CanReveal(), "reveal stays disabled until everyone voted")

	s, _ = Reduce(s, snapshot(false, map[string]models.CardValue{"ana": "5", "bo": "?"}))
	assert.True(t, s.CanReveal())

	s, _ = Reduce(s, Inbound{Signal: events.StartCountdownSignal{}})
	assert.False(t, s.CanReveal(), "disabled while counting")

	s, _ = Reduce(s, snapshot(true, map[string]models.CardValue{"ana": "5", "bo": "?"}))
	s, _ = reduceAll(s, Tick{Gen: s.gen}, Tick{Gen: s.gen}, Tick{Gen: s.gen})
	assert.True(t, s.ShowResults())
	assert.False(t, s.CanReveal(), "disabled once results are shown")

	avg := s.Average()
	require.NotNil(t, avg)
	assert.InDelta(t, 5.0, *avg, 1e-9)
}

func TestAverageFollowsCurrentVotes(t *testing.T) {
	s, _ := Reduce(newState(), snapshot(false, map[string]models.CardValue{"ana": "3", "bo": "5"}))
	assert.Nil(t, s.Average())

	s, _ = Reduce(s, snapshot(true, map[string]models.CardValue{"ana": "3", "bo": "5"}))
	require.NotNil(t, s.Average())
	assert.InDelta(t, 4.0, *s.Average(), 1e-9)

	s, _ = Reduce(s, snapshot(true, map[string]models.CardValue{"ana": "?", "bo": "?"}))
	require.NotNil(t, s.Average())
	assert.Zero(t, *s.Average())
}
