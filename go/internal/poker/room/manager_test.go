package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

func newTestManager() (*Manager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	return NewManager(NewMemoryStore(), clock, 0), clock
}

func TestManager_CreateRoom(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	r, err := m.CreateRoom(ctx, "  Sprint 42 ")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Sprint 42", r.State.Name)
	assert.Equal(t, clock.Now(), r.CreatedAt)

	got, err := m.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = m.CreateRoom(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyRoomName)
}

func TestManager_ExecuteStampsCommands(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()
	r, err := m.CreateRoom(ctx, "Squad")
	require.NoError(t, err)

	_, err = m.Execute(ctx, r.ID, Command{Type: CommandJoin, Actor: "ana"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	res, err := m.Execute(ctx, r.ID, Command{Type: CommandSendMessage, Actor: "ana", ActorID: "c1", Text: "hi"})
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)

	msg := res.Signals[0].(events.MessageSignal).Message
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.FormatTimestamp(clock.Now()), msg.Timestamp)

	got, err := m.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana"}, got.State.Participants)
	require.Len(t, got.State.Messages, 2)
	assert.NotEqual(t, got.State.Messages[0].ID, got.State.Messages[1].ID)
	assert.Equal(t, clock.Now(), got.UpdatedAt)
}

func TestManager_ExecuteRejectedCommandLeavesRoom(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r, err := m.CreateRoom(ctx, "Squad")
	require.NoError(t, err)

	_, err = m.Execute(ctx, r.ID, Command{Type: CommandVote, Actor: "ghost", Card: models.CardOne})
	assert.ErrorIs(t, err, ErrNotParticipant)

	got, err := m.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.State.Votes)

	_, err = m.Execute(ctx, "nope", Command{Type: CommandJoin, Actor: "ana"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestManager_ConcurrentVotesAreNotLost(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r, err := m.CreateRoom(ctx, "Squad")
	require.NoError(t, err)

	names := []string{"ana", "bo", "cy", "di", "ed", "flo"}
	for _, n := range names {
		_, err := m.Execute(ctx, r.ID, Command{Type: CommandJoin, Actor: n})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := m.Execute(ctx, r.ID, Command{Type: CommandVote, Actor: name, Card: models.CardThree})
			assert.NoError(t, err)
		}(n)
	}
	wg.Wait()

	got, err := m.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.Votes, len(names))

	_, err = m.Execute(ctx, r.ID, Command{Type: CommandStartReveal, Actor: "ana"})
	assert.NoError(t, err)
}

func TestManager_DeleteRoom(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r, err := m.CreateRoom(ctx, "Squad")
	require.NoError(t, err)

	require.NoError(t, m.DeleteRoom(ctx, r.ID))
	_, err = m.GetRoom(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, m.DeleteRoom(ctx, r.ID), ErrRoomNotFound)
}
