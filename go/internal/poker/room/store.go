package room

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// Room is a persisted room.
type Room struct {
	ID        string
	State     models.RoomState
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Room) clone() *Room {
	out := *r
	out.State = r.State.Clone()
	return &out
}

// Store persists rooms. Update must apply fn atomically with respect to
// other updates of the same room; an error from fn discards the change.
type Store interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, id string) (*Room, error)
	Update(ctx context.Context, id string, fn func(room *Room) error) (*Room, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// MemoryStore keeps rooms in process. Rooms are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*Room)}
}

func (s *MemoryStore) Create(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(room *Room) error) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	working := r.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.rooms[id] = working
	return working.clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
