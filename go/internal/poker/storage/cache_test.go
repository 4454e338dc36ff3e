package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

// backends returns every KV implementation available in this environment.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	out := map[string]KV{"memory": NewMemoryKV()}

	bolt, err := OpenBoltKV(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	out["bolt"] = bolt

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rkv, err := NewRedisKV(ctx, RedisConfig{Addr: addr, Prefix: "test:" + t.Name() + ":"})
		require.NoError(t, err)
		t.Cleanup(func() { rkv.Close() })
		out["redis"] = rkv
	}
	return out
}

func TestRoomCache_VoteRoundTrip(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := NewRoomCache(kv)

			_, ok, err := cache.LoadVote(ctx, "r1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, cache.SaveVote(ctx, "r1", "5"))
			v, ok, err := cache.LoadVote(ctx, "r1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, models.CardValue("5"), v)

			require.NoError(t, cache.ClearVote(ctx, "r1"))
			_, ok, err = cache.LoadVote(ctx, "r1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRoomCache_RoomStateRoundTrip(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := NewRoomCache(kv)

			task := "login"
			state := models.RoomState{
				Participants: []string{"ana", "bo"},
				Votes:        map[string]models.CardValue{"ana": "8"},
				CurrentTask:  &task,
				Name:         "Squad",
			}
			require.NoError(t, cache.SaveRoomState(ctx, "r1", state))

			got, err := cache.LoadRoomState(ctx, "r1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, state, *got)

			require.NoError(t, cache.SaveVote(ctx, "r1", "8"))
			require.NoError(t, cache.ClearRoomData(ctx, "r1"))

			got, err = cache.LoadRoomState(ctx, "r1")
			require.NoError(t, err)
			assert.Nil(t, got)
			_, ok, err := cache.LoadVote(ctx, "r1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRoomCache_MalformedDataIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	cache := NewRoomCache(kv)

	require.NoError(t, kv.Set(ctx, "room_r1_state", "{not json"))
	require.NoError(t, kv.Set(ctx, "room_r1_vote", "banana"))
	require.NoError(t, kv.Set(ctx, "roomState", "[]"))

	state, err := cache.LoadRoomState(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, state)

	_, ok, err := cache.LoadVote(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	ptr, err := cache.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, ptr)
}

func TestRoomCache_Session(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	cache := NewRoomCache(kv)

	ptr, err := cache.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, ptr)

	want := models.SessionPointer{InRoom: true, RoomID: "r1", Username: "ana"}
	require.NoError(t, cache.SaveSession(ctx, want))

	raw, ok, err := kv.Get(ctx, "roomState")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"inRoom":true,"roomId":"r1","username":"ana"}`, raw)

	ptr, err = cache.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, want, *ptr)

	require.NoError(t, cache.ClearSession(ctx))
	assert.Equal(t, 0, kv.Len())
}

func TestBoltKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	kv, err := OpenBoltKV(path)
	require.NoError(t, err)
	require.NoError(t, NewRoomCache(kv).SaveVote(ctx, "r1", "13"))
	require.NoError(t, kv.Close())

	kv, err = OpenBoltKV(path)
	require.NoError(t, err)
	defer kv.Close()

	v, ok, err := NewRoomCache(kv).LoadVote(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.CardValue("13"), v)
}
