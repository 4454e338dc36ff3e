package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planning-poker/go/internal/poker/events"
	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

const (
	roomLockStripes = 64
	commandTimeout  = 5 * time.Second
	errNotJoined    = "join a room first"
)

// RoomExecutor runs a command against a room and returns what to broadcast.
type RoomExecutor interface {
	Execute(ctx context.Context, roomID string, cmd room.Command) (room.Result, error)
}

// ConnectionManager manages WebSocket connections grouped by room
type ConnectionManager struct {
	rooms       map[string]map[*Connection]bool
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	executor RoomExecutor
	bus      Bus

	// Held across execute and publish so a room's broadcasts leave in
	// commit order.
	roomLocks [roomLockStripes]sync.Mutex

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client. RoomID and
// Username are empty until the client joins a room.
type Connection struct {
	ID       string
	RoomID   string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	lastPing    atomic.Int64
}

// BroadcastMessage is an encoded envelope bound for every connection in a room
type BroadcastMessage struct {
	RoomID string
	Data   []byte
}

// Stats summarises active connections.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

func NewConnectionManager(config ConnectionConfig, executor RoomExecutor, bus Bus) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		rooms:       make(map[string]map[*Connection]bool),
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		executor:    executor,
		bus:         bus,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Deliver queues an encoded envelope for the room's local connections. It is
// the Bus subscriber.
func (cm *ConnectionManager) Deliver(roomID string, data []byte) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Data: data}:
	default:
		log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
	}
	connection.lastPing.Store(now.UnixNano())

	cm.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[c] = true
}

// unregister removes c and closes its send channel. Safe to call twice.
func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.connections[c] {
		return
	}
	delete(cm.connections, c)
	close(c.Send)

	if conns, ok := cm.rooms[c.RoomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(cm.rooms, c.RoomID)
		}
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", c.RoomID).
		Str("username", c.Username).
		Msg("connection unregistered")
}

// attach moves c into roomID's pool.
func (cm *ConnectionManager) attach(c *Connection, roomID, username string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.connections[c] {
		return
	}
	if conns, ok := cm.rooms[c.RoomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(cm.rooms, c.RoomID)
		}
	}
	c.RoomID = roomID
	c.Username = username
	if cm.rooms[roomID] == nil {
		cm.rooms[roomID] = make(map[*Connection]bool)
	}
	cm.rooms[roomID][c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Str("room_id", roomID).
		Int("room_connections", len(cm.rooms[roomID])).
		Msg("connection joined room")
}

func (cm *ConnectionManager) hasOtherConnection(roomID, username string, except *Connection) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for c := range cm.rooms[roomID] {
		if c != except && c.Username == username {
			return true
		}
	}
	return false
}

func (cm *ConnectionManager) lockRoom(roomID string) func() {
	m := &cm.roomLocks[xxhash.Sum64String(roomID)%roomLockStripes]
	m.Lock()
	return m.Unlock
}

// Publish encodes signals for roomID and hands them to the bus in order.
func (cm *ConnectionManager) Publish(ctx context.Context, roomID string, signals ...events.Signal) error {
	for _, sig := range signals {
		env, err := events.SignalEnvelope(roomID, sig)
		if err != nil {
			return err
		}
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", env.Type, err)
		}
		if err := cm.bus.Publish(ctx, roomID, data); err != nil {
			return err
		}
	}
	return nil
}

func (cm *ConnectionManager) join(ctx context.Context, c *Connection, intent events.JoinRoom) {
	roomID := strings.TrimSpace(intent.RoomID)
	username := strings.TrimSpace(intent.Username)
	if roomID == "" {
		cm.sendError(c, errors.New("room id is required"))
		return
	}

	prevRoom, prevUser := c.RoomID, c.Username

	unlock := cm.lockRoom(roomID)
	res, err := cm.executor.Execute(ctx, roomID, room.Command{
		Type:    room.CommandJoin,
		Actor:   username,
		ActorID: c.ID,
	})
	if err != nil {
		unlock()
		cm.sendError(c, err)
		return
	}
	cm.attach(c, roomID, username)
	if err := cm.Publish(ctx, roomID, res.Signals...); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to publish join")
	}
	unlock()

	if prevRoom != "" && (prevRoom != roomID || prevUser != username) {
		cm.leaveIfLast(ctx, prevRoom, prevUser, c)
	}
}

func (cm *ConnectionManager) execute(ctx context.Context, c *Connection, cmd room.Command) {
	unlock := cm.lockRoom(c.RoomID)
	defer unlock()

	res, err := cm.executor.Execute(ctx, c.RoomID, cmd)
	if err != nil {
		log.Debug().Err(err).
			Str("connection_id", c.ID).
			Str("command", string(cmd.Type)).
			Msg("command rejected")
		cm.sendError(c, err)
		return
	}
	if err := cm.Publish(ctx, c.RoomID, res.Signals...); err != nil {
		log.Error().Err(err).Str("room_id", c.RoomID).Msg("failed to publish room update")
	}
}

// leaveIfLast removes username from the room unless another connection
// still carries that name there.
func (cm *ConnectionManager) leaveIfLast(ctx context.Context, roomID, username string, except *Connection) {
	if roomID == "" || username == "" {
		return
	}

	unlock := cm.lockRoom(roomID)
	defer unlock()

	if cm.hasOtherConnection(roomID, username, except) {
		return
	}
	res, err := cm.executor.Execute(ctx, roomID, room.Command{Type: room.CommandLeave, Actor: username})
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			log.Warn().Err(err).Str("room_id", roomID).Str("username", username).Msg("failed to leave room")
		}
		return
	}
	if err := cm.Publish(ctx, roomID, res.Signals...); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to publish leave")
	}
}

// sendError reports err to c alone.
func (cm *ConnectionManager) sendError(c *Connection, err error) {
	text := err.Error()
	if errors.Is(err, room.ErrRoomNotFound) {
		text = events.RoomNotFoundText
	}
	env, encErr := events.SignalEnvelope(c.RoomID, events.ErrorSignal{Text: text})
	if encErr != nil {
		log.Error().Err(encErr).Msg("failed to encode error")
		return
	}
	data, encErr := json.Marshal(env)
	if encErr != nil {
		log.Error().Err(encErr).Msg("failed to marshal error")
		return
	}

	cm.mu.RLock()
	ok := cm.trySend(c, data)
	cm.mu.RUnlock()
	if !ok {
		cm.dropSlow(c)
	}
}

// trySend must be called with cm.mu held. It reports false when c's buffer
// is full.
func (cm *ConnectionManager) trySend(c *Connection, data []byte) bool {
	if !cm.connections[c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) dropSlow(c *Connection) {
	log.Warn().
		Str("connection_id", c.ID).
		Str("username", c.Username).
		Msg("connection send buffer full, closing connection")
	cm.unregister(c)
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	env, err := events.Parse(message.Data)
	if err != nil {
		log.Error().Err(err).Str("room_id", message.RoomID).Msg("dropping malformed broadcast")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.rooms[message.RoomID]))
	var slow []*Connection
	for c := range cm.rooms[message.RoomID] {
		targets = append(targets, c)
		if !cm.trySend(c, message.Data) {
			slow = append(slow, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range slow {
		cm.dropSlow(c)
	}

	// A deleted room ends every session in it once the error is flushed.
	if closesRoom(env) {
		for _, c := range targets {
			cm.unregister(c)
		}
	}

	log.Debug().
		Str("event_type", string(env.Type)).
		Str("room_id", message.RoomID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func closesRoom(env *events.Envelope) bool {
	if env.Type != events.EventTypeError {
		return false
	}
	sig, err := events.ParseSignal(env)
	if err != nil {
		return false
	}
	e, ok := sig.(events.ErrorSignal)
	return ok && events.IsRoomNotFound(e.Text)
}

// CloseAll disconnects every client.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	all := make([]*Connection, 0, len(cm.connections))
	for c := range cm.connections {
		all = append(all, c)
	}
	cm.mu.RUnlock()

	for _, c := range all {
		cm.unregister(c)
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.rooms),
		RoomConnections:  make(map[string]int, len(cm.rooms)),
	}
	for roomID, conns := range cm.rooms {
		stats.RoomConnections[roomID] = len(conns)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		c.Manager.leaveIfLast(ctx, c.RoomID, c.Username, c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.lastPing.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes one intent and applies it to the joined room.
func (c *Connection) handleClientMessage(message []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	env, err := events.Parse(message)
	if err != nil {
		c.Manager.sendError(c, err)
		return
	}
	intent, err := events.ParseIntent(env)
	if err != nil {
		c.Manager.sendError(c, err)
		return
	}

	if join, ok := intent.(events.JoinRoom); ok {
		c.Manager.join(ctx, c, join)
		return
	}
	if c.RoomID == "" {
		c.Manager.sendError(c, errors.New(errNotJoined))
		return
	}

	cmd, err := commandFor(intent)
	if err != nil {
		c.Manager.sendError(c, err)
		return
	}
	cmd.Actor = c.Username
	cmd.ActorID = c.ID
	c.Manager.execute(ctx, c, cmd)
}

// LastPing returns when the client last answered a ping.
func (c *Connection) LastPing() time.Time {
	return time.Unix(0, c.lastPing.Load())
}

// commandFor maps a non-join intent onto a room command. The chat message
// type from the client is ignored; only the server writes system messages.
func commandFor(intent events.Intent) (room.Command, error) {
	switch it := intent.(type) {
	case events.CastVote:
		return room.Command{Type: room.CommandVote, Card: it.Value}, nil
	case events.NewTask:
		return room.Command{Type: room.CommandNewTask, Text: it.Task}, nil
	case events.StartReveal:
		return room.Command{Type: room.CommandStartReveal}, nil
	case events.ResetVotes:
		return room.Command{Type: room.CommandReset}, nil
	case events.SendMessage:
		return room.Command{Type: room.CommandSendMessage, Text: it.Message}, nil
	}
	return room.Command{}, fmt.Errorf("%w: %s", room.ErrUnsupportedCommand, intent.IntentType())
}
