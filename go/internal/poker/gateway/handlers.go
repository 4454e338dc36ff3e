package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/poker/events"
	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleCreateRoom handles POST /api/rooms
func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.rooms.CreateRoom(r.Context(), req.Name)
	if errors.Is(err, room.ErrEmptyRoomName) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to create room")
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: created.ID})
}

// handleGetRoomState handles GET /api/rooms/{roomID}/state
func (s *Service) handleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	found, err := s.rooms.GetRoom(r.Context(), roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, events.RoomNotFoundText)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room state")
		writeError(w, http.StatusInternalServerError, "failed to get room state")
		return
	}

	writeJSON(w, http.StatusOK, found.State)
}

// handleDeleteRoom handles DELETE /api/rooms/{roomID}. Connected clients
// receive a room-not-found error and are disconnected.
func (s *Service) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	err := s.rooms.DeleteRoom(r.Context(), roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, events.RoomNotFoundText)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to delete room")
		writeError(w, http.StatusInternalServerError, "failed to delete room")
		return
	}

	if err := s.connectionManager.Publish(r.Context(), roomID, events.ErrorSignal{Text: events.RoomNotFoundText}); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to notify deleted room")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket handles GET /ws. The client picks its room with join_room.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.connectionManager.UpgradeConnection(w, r); err != nil {
		// The upgrader has already replied with an HTTP error.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}

// handleStats handles GET /ws/stats
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetStats())
}
