package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

// Service is the room gateway: the room HTTP API plus the WebSocket endpoint
// that turns client intents into room commands and broadcasts the results.
type Service struct {
	connectionManager *ConnectionManager
	rooms             *room.Manager
	bus               Bus
	health            *HealthChecker
	ready             chan struct{}
}

// NewService wires a gateway around rooms. bus may be nil for a single
// process deployment.
func NewService(config Config, rooms *room.Manager, bus Bus) *Service {
	if bus == nil {
		bus = NewLocalBus()
	}
	cm := NewConnectionManager(config.Connection, rooms, bus)
	return &Service{
		connectionManager: cm,
		rooms:             rooms,
		bus:               bus,
		health:            NewHealthChecker(rooms, bus, cm),
		ready:             make(chan struct{}),
	}
}

// Start subscribes to the bus and processes broadcasts until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	if err := s.bus.Subscribe(s.connectionManager.Deliver); err != nil {
		return fmt.Errorf("failed to subscribe to room events: %w", err)
	}
	go s.connectionManager.Start(ctx)
	close(s.ready)

	<-ctx.Done()

	log.Info().Msg("room gateway service shutting down")
	return s.Stop()
}

// Ready is closed once Start is delivering broadcasts.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Stop disconnects all clients and closes the bus.
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()
	if err := s.bus.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event bus")
		return err
	}
	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the room API, health and WebSocket routes
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.health.ServeHTTP)
	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.handleCreateRoom)
		r.Get("/{roomID}/state", s.handleGetRoomState)
		r.Delete("/{roomID}", s.handleDeleteRoom)
	})
	r.Get("/ws", s.handleWebSocket)
	r.Get("/ws/stats", s.handleStats)
	log.Info().Msg("room gateway routes registered")
}

// Handler returns a router with every gateway route.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	return r
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return s.connectionManager.GetConnectionStats()
}
