package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker/session"
	"github.com/mcdev12/planning-poker/go/internal/poker/storage"
)

type runningSession struct {
	*session.Session
	cache *storage.RoomCache
	errCh chan error
}

func (s *testServer) startSession(t *testing.T, roomID, username string) *runningSession {
	t.Helper()

	wsURL, err := session.WebSocketURL(s.URL)
	require.NoError(t, err)

	cache := storage.NewRoomCache(storage.NewMemoryKV())
	sess := session.NewSession(
		session.Config{RoomID: roomID, Username: username, Tick: 10 * time.Millisecond},
		session.NewWebSocketTransport(wsURL, roomID),
		cache,
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{Session: sess, cache: cache, errCh: make(chan error, 1)}
	go func() { rs.errCh <- sess.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-sess.Done()
	})
	return rs
}

func (rs *runningSession) await(t *testing.T, match func(session.State) bool) session.State {
	t.Helper()
	deadline := time.After(readTimeout)
	for {
		select {
		case st, ok := <-rs.Updates():
			require.True(t, ok, "session ended early")
			if match(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for session state")
			return session.State{}
		}
	}
}

func TestSession_AgainstGateway(t *testing.T) {
	srv := newTestServer(t)
	roomID := srv.createRoom(t, "Squad")

	ana := srv.startSession(t, roomID, "ana")
	bo := srv.startSession(t, roomID, "bo")

	bothIn := func(s session.State) bool {
		return s.Room.HasParticipant("ana") && s.Room.HasParticipant("bo")
	}
	ana.await(t, bothIn)
	bo.await(t, bothIn)

	ana.Vote(models.CardFive)
	bo.Vote(models.CardThirteen)
	st := ana.await(t, func(s session.State) bool { return s.AllVoted() })
	assert.True(t, st.CanReveal())

	ana.Reveal()
	for _, s := range []*runningSession{ana, bo} {
		st := s.await(t, func(s session.State) bool { return s.ShowResults() })
		assert.True(t, st.LocalRevealed)
		require.NotNil(t, st.Average())
		assert.InDelta(t, 9.0, *st.Average(), 0.001)
	}

	vote, ok, err := bo.cache.LoadVote(context.Background(), roomID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.CardThirteen, vote)

	bo.Reset()
	ana.await(t, func(s session.State) bool { return !s.LocalRevealed && len(s.Room.Votes) == 0 })
}

func TestSession_DeletedRoomEndsSession(t *testing.T) {
	srv := newTestServer(t)
	roomID := srv.createRoom(t, "Squad")

	ana := srv.startSession(t, roomID, "ana")
	ana.await(t, func(s session.State) bool { return s.Room.HasParticipant("ana") })

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/rooms/"+roomID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case err := <-ana.errCh:
		assert.ErrorIs(t, err, session.ErrRoomNotFound)
	case <-time.After(readTimeout):
		t.Fatal("session did not end")
	}

	ptr, err := ana.cache.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ptr)
}
