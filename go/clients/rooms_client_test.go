package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planning-poker/go/internal/models"
)

func TestRoomsClient_CreateRoom(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rooms", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct{ Name string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotName = req.Name

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"room_id":"abc-123"}`))
	}))
	defer srv.Close()

	id, err := NewRoomsClient(srv.URL+"/").CreateRoom(context.Background(), "Sprint 42")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "Sprint 42", gotName)
}

func TestRoomsClient_CreateRoomFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"room name is required"}`},
		{name: "malformed body", status: http.StatusCreated, body: `not json`},
		{name: "missing id", status: http.StatusCreated, body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRoomsClient(srv.URL).CreateRoom(context.Background(), "x")
			assert.ErrorIs(t, err, ErrRoomCreation)
		})
	}
}

func TestRoomsClient_CreateRoomUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRoomsClient(url).CreateRoom(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRoomCreation)
}

func TestRoomsClient_GetRoomState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/rooms/r1/state":
			w.Write([]byte(`{"participants":["ana"],"votes":{"ana":"5"},"revealed":false,"currentTask":null,"name":"Squad"}`))
		default:
			http.Error(w, `{"error":"room not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewRoomsClient(srv.URL)
	state, err := c.GetRoomState(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Squad", state.Name)
	assert.Equal(t, models.CardFive, state.Votes["ana"])
	assert.Nil(t, state.CurrentTask)

	_, err = c.GetRoomState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, c.DeleteRoom(context.Background(), "missing"), ErrRoomNotFound)
}

func TestBaseClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout\n"))
	}))
	defer srv.Close()

	_, err := NewBaseClient(srv.URL).Get(context.Background(), "/")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTeapot, se.StatusCode)
	assert.Equal(t, "short and stout", se.Body)
}
