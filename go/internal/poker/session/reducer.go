package session

import (
	"fmt"
	"strings"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

// Reduce applies one input to s and returns the next state plus the effects
// the caller must run. It is the only place State changes.
func Reduce(s State, in Input) (State, []Effect) {
	if s.Exited {
		return s, nil
	}

	switch in := in.(type) {
	case Connected:
		s.Connected = true
		s.LastError = ""
		return s, []Effect{
			Send{Intent: events.JoinRoom{RoomID: s.RoomID, Username: s.Username}},
			RememberRoom{},
		}

	case ConnectionLost:
		err := ErrConnection
		if in.Err != nil {
			err = fmt.Errorf("%w: %v", ErrConnection, in.Err)
		}
		s.LastError = err.Error()
		return exit(s, err, Alert{Text: s.LastError})

	case Inbound:
		return reduceSignal(s, in.Signal)

	case Vote:
		if s.Room.Revealed {
			return s, nil
		}
		if !poker.IsValidCard(in.Value) {
			s.LastError = fmt.Sprintf("invalid card %q", in.Value)
			return s, nil
		}
		s.SelectedCard = in.Value
		return s, []Effect{
			SaveVote{Value: in.Value},
			Send{Intent: events.CastVote{Value: in.Value}},
		}

	case NewTask:
		task := strings.TrimSpace(in.Text)
		if task == "" {
			return s, nil
		}
		next, effects := clearRound(s)
		return next, append([]Effect{Send{Intent: events.NewTask{Task: task}}}, effects...)

	case Reveal:
		return s, []Effect{Send{Intent: events.StartReveal{}}}

	case Reset:
		next, effects := clearRound(s)
		return next, append([]Effect{Send{Intent: events.ResetVotes{}}}, effects...)

	case SendMessage:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return s, nil
		}
		return s, []Effect{Send{Intent: events.SendMessage{Message: text, Type: models.MessageTypeChat}}}

	case Leave:
		return exit(s, nil)

	case Tick:
		if in.Gen != s.gen || s.Phase != PhaseCounting || s.Countdown == nil {
			return s, nil
		}
		n := *s.Countdown - 1
		s.Countdown = &n
		if n > 0 {
			return s, []Effect{ScheduleTick{Gen: s.gen}}
		}
		return s, []Effect{Followup{Input: revealNow{gen: s.gen}}}

	case revealNow:
		if in.gen != s.gen || s.Phase != PhaseCounting {
			return s, nil
		}
		s.Phase = PhaseRevealing
		s.Countdown = nil
		s.LocalRevealed = true
		s.ShowAnimation = true
		return s, nil
	}

	return s, nil
}

func reduceSignal(s State, sig events.Signal) (State, []Effect) {
	switch sig := sig.(type) {
	case events.RoomStateSignal:
		s.Room = sig.State
		if s.Phase == PhaseRevealing && !s.Room.Revealed {
			s.Phase = PhaseIdle
			s.LocalRevealed = false
			s.ShowAnimation = false
		}
		return s, []Effect{SaveRoom{State: s.Room}}

	case events.MessageSignal:
		for _, m := range s.Room.Messages {
			if m.ID == sig.Message.ID {
				return s, nil
			}
		}
		msgs := make([]models.Message, 0, len(s.Room.Messages)+1)
		msgs = append(msgs, s.Room.Messages...)
		s.Room.Messages = append(msgs, sig.Message)
		return s, []Effect{SaveRoom{State: s.Room}}

	case events.StartCountdownSignal:
		s.gen++
		n := CountdownFrom
		s.Countdown = &n
		s.Phase = PhaseCounting
		s.LocalRevealed = false
		s.ShowAnimation = false
		return s, []Effect{CancelTick{}, ScheduleTick{Gen: s.gen}}

	case events.ErrorSignal:
		s.LastError = sig.Text
		alert := Alert{Text: sig.Text}
		if events.IsRoomNotFound(sig.Text) {
			return exit(s, ErrRoomNotFound, alert)
		}
		return s, []Effect{alert}

	case events.VotesResetSignal:
		return clearRound(s)
	}

	return s, nil
}

// clearRound forgets everything local to the current round, including any
// countdown still in flight.
func clearRound(s State) (State, []Effect) {
	s.SelectedCard = ""
	s.LocalRevealed = false
	s.ShowAnimation = false

	effects := []Effect{ClearVote{}}
	if s.Phase == PhaseCounting {
		s.gen++
		s.Countdown = nil
		effects = append(effects, CancelTick{})
	}
	s.Phase = PhaseIdle
	return s, effects
}

// exit ends the session. Pending countdowns are invalidated before the
// connection is closed and the cache purged.
func exit(s State, err error, leading ...Effect) (State, []Effect) {
	s.gen++
	s.Countdown = nil
	s.Phase = PhaseIdle
	s.Connected = false
	s.Exited = true
	s.ExitErr = err

	effects := append(leading, CancelTick{}, CloseConnection{}, ClearRoomData{})
	return s, effects
}
