package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// Hub fans session events out to the WebSocket clients watching each session.
type Hub struct {
	// Connection pools organized by session ID
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *events.Event
}

// Connection is one WebSocket client following a session.
type Connection struct {
	ID        string
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	hub       *Hub
	commands  CommandHandler

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// CommandHandler applies a control command sent by a client.
type CommandHandler func(ctx context.Context, sessionID uuid.UUID, action string) error

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewHub creates a new WebSocket hub
func NewHub(config ConnectionConfig) *Hub {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &Hub{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Start processes broadcasts until ctx is done, then closes every connection.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.flush()
			h.closeAll()
			log.Info().Msg("websocket hub shutting down")
			return
		case event := <-h.broadcastCh:
			h.handleBroadcast(event)
		}
	}
}

// Publish queues an event for the session's clients. It never blocks.
func (h *Hub) Publish(_ context.Context, event *events.Event) error {
	select {
	case h.broadcastCh <- event:
		return nil
	default:
		return fmt.Errorf("broadcast channel full, dropped %s for session %s", event.Type, event.SessionID)
	}
}

// InitialMessage builds the first message for a new connection.
type InitialMessage func() ([]byte, error)

// Upgrade upgrades an HTTP connection to WebSocket and registers it under
// sessionID. initial, when non-nil, runs after registration with broadcasts
// held off, so its message comes first and no later event is missed.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, initial InitialMessage, commands CommandHandler) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBufferSize),
		hub:         h,
		commands:    commands,
		ConnectedAt: time.Now(),
	}
	if err := h.register(c, initial); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return fmt.Errorf("initial message: %w", err)
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")

	return nil
}

// register adds c and queues initial's message while holding the write lock.
// Broadcasts send under the read lock, so none can slip in ahead of it.
func (h *Hub) register(c *Connection, initial InitialMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if initial != nil {
		msg, err := initial()
		if err != nil {
			return err
		}
		c.Send <- msg
	}

	if h.sessionConnections[c.SessionID] == nil {
		h.sessionConnections[c.SessionID] = make(map[*Connection]bool)
	}
	h.sessionConnections[c.SessionID][c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Str("session_id", c.SessionID.String()).
		Int("total_connections", len(h.sessionConnections[c.SessionID])).
		Msg("connection registered")
	return nil
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connections, ok := h.sessionConnections[c.SessionID]
	if !ok {
		return
	}
	if _, ok := connections[c]; !ok {
		return
	}
	delete(connections, c)
	close(c.Send)

	if len(connections) == 0 {
		delete(h.sessionConnections, c.SessionID)
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("session_id", c.SessionID.String()).
		Msg("connection unregistered")
}

func (h *Hub) handleBroadcast(event *events.Event) {
	sessionID, err := uuid.Parse(event.SessionID)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("event has invalid session id")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	h.mu.RLock()
	connections := h.sessionConnections[sessionID]
	sent := len(connections)
	var slow []*Connection
	for c := range connections {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}

	if sent == 0 {
		return
	}
	log.Debug().
		Str("event_type", event.Type).
		Str("session_id", event.SessionID).
		Int("connections", sent).
		Msg("event broadcasted")
}

// closeAll unregisters every connection. Each write pump then sends a close
// frame and exits.
// flush delivers events queued before shutdown.
func (h *Hub) flush() {
	for {
		select {
		case event := <-h.broadcastCh:
			h.handleBroadcast(event)
		default:
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*Connection
	for _, connections := range h.sessionConnections {
		for c := range connections {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// Stats describes the connected clients.
type Stats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// Stats returns statistics about active connections
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		ActiveSessions:     len(h.sessionConnections),
		SessionConnections: make(map[string]int, len(h.sessionConnections)),
	}
	for id, connections := range h.sessionConnections {
		s.TotalConnections += len(connections)
		s.SessionConnections[id.String()] = len(connections)
	}
	return s
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
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
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
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

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
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
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// clientMessage is a control command sent over the socket.
type clientMessage struct {
	Action string `json:"action"`
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Action == "" {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("ignoring malformed client message")
		return
	}
	if c.commands == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.config.WriteTimeout)
	defer cancel()
	if err := c.commands(ctx, c.SessionID, msg.Action); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("session_id", c.SessionID.String()).
			Str("action", msg.Action).
			Msg("client command failed")
	}
}
