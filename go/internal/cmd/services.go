package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/poker/gateway"
	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

type Services struct {
	Rooms   *room.Manager
	Gateway *gateway.Service

	db *sql.DB
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Store → Manager → Gateway
	services := &Services{}

	var store room.Store
	switch config.Rooms.Store {
	case storePostgres:
		db, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.db = db
		store = room.NewPostgresStore(db)
	default:
		store = room.NewMemoryStore()
	}
	services.Rooms = room.NewManager(store, nil, config.Rooms.MaxMessages)

	gatewayConfig := gateway.DefaultConfig()
	if config.WebSocket.PingInterval > 0 {
		gatewayConfig.Connection.PingInterval = config.WebSocket.PingInterval
	}
	if config.WebSocket.ReadTimeout > 0 {
		gatewayConfig.Connection.ReadTimeout = config.WebSocket.ReadTimeout
	}
	if config.WebSocket.MaxMessageSize > 0 {
		gatewayConfig.Connection.MaxMessageSize = config.WebSocket.MaxMessageSize
	}

	var bus gateway.Bus
	if config.NATS.URL != "" {
		natsConfig := gateway.DefaultNATSConfig()
		natsConfig.URL = config.NATS.URL
		natsConfig.SubjectPrefix = config.NATS.SubjectPrefix

		natsBus, err := gateway.NewNATSBus(natsConfig)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to connect event bus: %w", err)
		}
		bus = natsBus
		log.Info().Str("nats_url", natsConfig.URL).Msg("broadcasting room events over NATS")
	}

	services.Gateway = gateway.NewService(gatewayConfig, services.Rooms, bus)
	return services, nil
}

func (s *Services) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}
