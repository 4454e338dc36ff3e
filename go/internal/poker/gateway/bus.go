package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Bus fans encoded room events out to every gateway instance, including the
// one that published them.
type Bus interface {
	Publish(ctx context.Context, roomID string, data []byte) error
	Subscribe(fn func(roomID string, data []byte)) error
	Close() error
}

// LocalBus delivers synchronously inside one process.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []func(roomID string, data []byte)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, roomID string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.handlers {
		fn(roomID, data)
	}
	return nil
}

func (b *LocalBus) Subscribe(fn func(roomID string, data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
	return nil
}

func (b *LocalBus) Close() error { return nil }

// NATSBus publishes each room on its own subject, <prefix>.<roomID>, and
// subscribes to all of them.
type NATSBus struct {
	nc     *nats.Conn
	prefix string

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("planning-poker-gateway"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSBusFromConn(nc, cfg.SubjectPrefix), nil
}

func NewNATSBusFromConn(nc *nats.Conn, prefix string) *NATSBus {
	if prefix == "" {
		prefix = DefaultNATSConfig().SubjectPrefix
	}
	return &NATSBus{nc: nc, prefix: prefix}
}

func (b *NATSBus) subject(roomID string) string {
	return b.prefix + "." + roomID
}

func (b *NATSBus) Publish(_ context.Context, roomID string, data []byte) error {
	if err := b.nc.Publish(b.subject(roomID), data); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}
	return nil
}

func (b *NATSBus) Subscribe(fn func(roomID string, data []byte)) error {
	sub, err := b.nc.Subscribe(b.prefix+".*", func(msg *nats.Msg) {
		roomID := strings.TrimPrefix(msg.Subject, b.prefix+".")
		fn(roomID, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to NATS: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// IsConnected reports the NATS connection status for health checks.
func (b *NATSBus) IsConnected() bool {
	return b.nc.IsConnected()
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("failed to unsubscribe")
		}
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain NATS: %w", err)
	}
	return nil
}
