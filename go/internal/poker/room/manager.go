package room

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// Manager is the room service used by the gateway: it creates rooms and runs
// commands through the Engine against the Store.
type Manager struct {
	store  Store
	engine Engine
	clock  clockwork.Clock
}

func NewManager(store Store, clock clockwork.Clock, maxMessages int) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		store:  store,
		engine: Engine{MaxMessages: maxMessages},
		clock:  clock,
	}
}

// CreateRoom stores an empty room and returns it.
func (m *Manager) CreateRoom(ctx context.Context, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyRoomName
	}

	now := m.clock.Now().UTC()
	r := &Room{
		ID:        uuid.New().String(),
		State:     models.NewRoomState(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info().Str("room_id", r.ID).Str("name", name).Msg("room created")
	return r, nil
}

func (m *Manager) GetRoom(ctx context.Context, id string) (*Room, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) DeleteRoom(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("room_id", id).Msg("room deleted")
	return nil
}

// Execute applies cmd to the room atomically and returns the signals to
// broadcast.
func (m *Manager) Execute(ctx context.Context, roomID string, cmd Command) (Result, error) {
	now := m.clock.Now().UTC()
	if cmd.At.IsZero() {
		cmd.At = now
	}
	if cmd.MessageID == "" {
		cmd.MessageID = uuid.New().String()
	}

	var result Result
	_, err := m.store.Update(ctx, roomID, func(r *Room) error {
		next, res, err := m.engine.Apply(r.State, cmd)
		if err != nil {
			return err
		}
		r.State = next
		r.UpdatedAt = now
		result = res
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.Debug().
		Str("room_id", roomID).
		Str("command", string(cmd.Type)).
		Str("actor", cmd.Actor).
		Int("signals", len(result.Signals)).
		Msg("command applied")
	return result, nil
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
