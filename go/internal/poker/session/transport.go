package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/poker/events"
)

// Transport is the duplex channel between a session and the room server.
type Transport interface {
	Connect(ctx context.Context) error
	Send(intent events.Intent) error
	// Signals is closed when the connection ends. Err then reports why.
	Signals() <-chan events.Signal
	Err() error
	Close() error
}

const writeTimeout = 10 * time.Second

var _ Transport = (*WebSocketTransport)(nil)

// WebSocketTransport speaks the room protocol over a gorilla websocket.
type WebSocketTransport struct {
	url    string
	roomID string
	dialer *websocket.Dialer

	conn    *websocket.Conn
	signals chan events.Signal
	done    chan struct{}

	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
}

// NewWebSocketTransport dials wsURL when connected. Outgoing envelopes are
// tagged with roomID.
func NewWebSocketTransport(wsURL, roomID string) *WebSocketTransport {
	return &WebSocketTransport{
		url:     wsURL,
		roomID:  roomID,
		dialer:  websocket.DefaultDialer,
		signals: make(chan events.Signal, 64),
		done:    make(chan struct{}),
	}
}

// WebSocketURL derives the socket endpoint from the HTTP API base URL.
func WebSocketURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", apiBase, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (t *WebSocketTransport) Connect(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.url, err)
	}
	t.conn = conn

	go t.readLoop()

	log.Debug().Str("url", t.url).Str("room_id", t.roomID).Msg("websocket connected")
	return nil
}

func (t *WebSocketTransport) readLoop() {
	defer close(t.signals)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if !t.closed {
				t.err = err
			}
			t.mu.Unlock()
			return
		}

		env, err := events.Parse(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping unreadable frame")
			continue
		}
		sig, err := events.ParseSignal(env)
		if err != nil {
			log.Warn().Err(err).Str("event_type", string(env.Type)).Msg("dropping unknown signal")
			continue
		}
		select {
		case t.signals <- sig:
		case <-t.done:
			return
		}
	}
}

func (t *WebSocketTransport) Send(intent events.Intent) error {
	if t.conn == nil {
		return errors.New("not connected")
	}

	env, err := events.IntentEnvelope(t.roomID, intent)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", env.Type, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

func (t *WebSocketTransport) Signals() <-chan events.Signal {
	return t.signals
}

func (t *WebSocketTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close sends a close frame and tears the socket down. Safe to call more
// than once.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed || t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	return t.conn.Close()
}
