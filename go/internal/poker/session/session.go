package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/storage"
)

// Config identifies the room a Session joins.
type Config struct {
	RoomID   string
	Username string
	// Tick is the countdown step. Defaults to one second.
	Tick time.Duration
}

// Session is a single client's membership in a room. One goroutine (Run)
// owns the State; transport signals, user actions and timer ticks reach it
// as messages.
type Session struct {
	cfg       Config
	transport Transport
	cache     *storage.RoomCache
	scheduler *Scheduler

	inbox   chan Input
	queries chan chan State
	updates chan State
	done    chan struct{}

	state State
}

// NewSession seeds the state from cache so a restarted client shows the last
// known room and its own selection before the first snapshot arrives.
func NewSession(cfg Config, transport Transport, cache *storage.RoomCache, clock clockwork.Clock) *Session {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{
		cfg:       cfg,
		transport: transport,
		cache:     cache,
		scheduler: NewScheduler(clock),
		inbox:     make(chan Input, 32),
		queries:   make(chan chan State),
		updates:   make(chan State, 256),
		done:      make(chan struct{}),
		state: State{
			RoomID:   cfg.RoomID,
			Username: cfg.Username,
			Room:     models.NewRoomState(""),
		},
	}
	s.restore(context.Background())
	return s
}

func (s *Session) restore(ctx context.Context) {
	if s.cache == nil {
		return
	}

	room, err := s.cache.LoadRoomState(ctx, s.cfg.RoomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", s.cfg.RoomID).Msg("failed to load cached room state")
	} else if room != nil {
		s.state.Room = *room
	}

	vote, ok, err := s.cache.LoadVote(ctx, s.cfg.RoomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", s.cfg.RoomID).Msg("failed to load cached vote")
	} else if ok {
		s.state.SelectedCard = vote
	}
}

// Run connects and processes inputs until the session exits or ctx is
// cancelled. It returns nil after Leave, ErrRoomNotFound or ErrConnection
// when the server ends the session, and ctx.Err() on cancellation.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer close(s.updates)
	defer s.scheduler.Cancel()

	s.publish()

	if err := s.transport.Connect(ctx); err != nil {
		s.apply(ctx, ConnectionLost{Err: err})
		return s.state.ExitErr
	}
	s.apply(ctx, Connected{})

	signals := s.transport.Signals()
	for !s.state.Exited {
		select {
		case <-ctx.Done():
			s.transport.Close()
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				signals = nil
				s.apply(ctx, ConnectionLost{Err: s.transport.Err()})
				continue
			}
			s.apply(ctx, Inbound{Signal: sig})

		case in := <-s.inbox:
			s.apply(ctx, in)

		case reply := <-s.queries:
			reply <- s.state.Clone()
		}
	}

	log.Info().
		Str("room_id", s.cfg.RoomID).
		Str("username", s.cfg.Username).
		AnErr("reason", s.state.ExitErr).
		Msg("session ended")
	return s.state.ExitErr
}

func (s *Session) apply(ctx context.Context, in Input) {
	next, effects := Reduce(s.state, in)
	s.state = next
	s.publish()

	for _, eff := range effects {
		s.perform(ctx, eff)
	}
}

func (s *Session) perform(ctx context.Context, eff Effect) {
	roomID := s.cfg.RoomID

	switch eff := eff.(type) {
	case Send:
		if err := s.transport.Send(eff.Intent); err != nil {
			log.Warn().Err(err).Str("intent", string(eff.Intent.IntentType())).Msg("failed to send intent")
		}

	case SaveRoom:
		if s.cache != nil {
			if err := s.cache.SaveRoomState(ctx, roomID, eff.State); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Msg("failed to cache room state")
			}
		}

	case SaveVote:
		if s.cache != nil {
			if err := s.cache.SaveVote(ctx, roomID, eff.Value); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Msg("failed to cache vote")
			}
		}

	case ClearVote:
		if s.cache != nil {
			if err := s.cache.ClearVote(ctx, roomID); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Msg("failed to clear cached vote")
			}
		}

	case ClearRoomData:
		if s.cache != nil {
			// the caller may already be cancelled when leaving
			cctx := context.WithoutCancel(ctx)
			if err := s.cache.ClearRoomData(cctx, roomID); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Msg("failed to clear cached room")
			}
			if err := s.cache.ClearSession(cctx); err != nil {
				log.Warn().Err(err).Msg("failed to clear cached session")
			}
		}

	case RememberRoom:
		if s.cache != nil {
			ptr := models.SessionPointer{InRoom: true, RoomID: roomID, Username: s.cfg.Username}
			if err := s.cache.SaveSession(ctx, ptr); err != nil {
				log.Warn().Err(err).Msg("failed to cache session")
			}
		}

	case ScheduleTick:
		gen := eff.Gen
		s.scheduler.Schedule(s.cfg.Tick, func() {
			s.post(Tick{Gen: gen})
		})

	case CancelTick:
		s.scheduler.Cancel()

	case Followup:
		s.apply(ctx, eff.Input)

	case Alert:
		log.Warn().Str("room_id", roomID).Str("error", eff.Text).Msg("server reported an error")

	case CloseConnection:
		if err := s.transport.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing transport")
		}
	}
}

func (s *Session) publish() {
	select {
	case s.updates <- s.state.Clone():
	default:
		log.Warn().Str("room_id", s.cfg.RoomID).Msg("update buffer full, dropping state update")
	}
}

// post hands an input to the Run loop. It is dropped once the session ended.
func (s *Session) post(in Input) {
	select {
	case s.inbox <- in:
	case <-s.done:
	}
}

// Updates yields a State copy after every transition. It is closed when Run
// returns.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current state. The second result is false once the
// session has ended.
func (s *Session) State() (State, bool) {
	reply := make(chan State, 1)
	select {
	case s.queries <- reply:
		return <-reply, true
	case <-s.done:
		return State{}, false
	}
}

func (s *Session) Vote(value models.CardValue) { s.post(Vote{Value: value}) }
func (s *Session) NewTask(text string)          { s.post(NewTask{Text: text}) }
func (s *Session) Reveal()                      { s.post(Reveal{}) }
func (s *Session) Reset()                       { s.post(Reset{}) }
func (s *Session) SendMessage(text string)      { s.post(SendMessage{Text: text}) }

// Leave cancels any pending countdown, closes the connection and purges the
// cached room data.
func (s *Session) Leave() { s.post(Leave{}) }
